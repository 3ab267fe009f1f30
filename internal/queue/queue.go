// Package queue runs pipeline jobs one at a time and persists every state
// transition so that a restart can resume queued work.
package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/metrics"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/pipeline"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/store"
)

// ErrClosed is returned by Submit once the queue loop has stopped.
var ErrClosed = eris.New("queue: closed")

// ErrNotStarted is returned by Submit before Start.
var ErrNotStarted = eris.New("queue: not started")

// Runner executes one run.
type Runner interface {
	Run(ctx context.Context, opts model.RunOptions) (*model.RunResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, opts model.RunOptions) (*model.RunResult, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, opts model.RunOptions) (*model.RunResult, error) {
	return f(ctx, opts)
}

// Option configures a JobQueue.
type Option func(*JobQueue)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(q *JobQueue) { q.now = now }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(gen func() string) Option {
	return func(q *JobQueue) { q.newID = gen }
}

type submitRequest struct {
	opts  model.RunOptions
	reply chan submitReply
}

type submitReply struct {
	run model.Run
	err error
}

type outcome struct {
	id     string
	result *model.RunResult
	err    error
}

// JobQueue owns the set of known runs. Only the loop goroutine mutates
// runs and pending; readers take copies under mu.
type JobQueue struct {
	store  store.RunSnapshotStore
	runner Runner
	now    func() time.Time
	newID  func() string

	mu      sync.RWMutex
	runs    map[string]*model.Run
	pending []string
	active  string

	submitCh chan submitRequest
	doneCh   chan outcome
	started  chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// New creates a JobQueue backed by st.
func New(st store.RunSnapshotStore, runner Runner, opts ...Option) *JobQueue {
	q := &JobQueue{
		store:    st,
		runner:   runner,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		runs:     make(map[string]*model.Run),
		submitCh: make(chan submitRequest),
		doneCh:   make(chan outcome),
		started:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Recover loads the persisted runs, demotes interrupted runs to queued and
// rebuilds the pending list in creation order. Call it before Start.
func (q *JobQueue) Recover(ctx context.Context) error {
	runs, err := q.store.LoadRuns(ctx)
	if err != nil {
		return eris.Wrap(err, "queue: load runs")
	}

	q.mu.Lock()
	var queued []*model.Run
	demoted := 0
	for i := range runs {
		r := runs[i]
		if r.Status == model.RunStatusRunning {
			r.Status = model.RunStatusQueued
			r.StartedAt = nil
			demoted++
		}
		q.runs[r.ID] = &r
		if r.Status == model.RunStatusQueued {
			queued = append(queued, &r)
		}
	}
	sort.SliceStable(queued, func(i, j int) bool { return queued[i].CreatedAt.Before(queued[j].CreatedAt) })
	q.pending = q.pending[:0]
	for _, r := range queued {
		q.pending = append(q.pending, r.ID)
	}
	q.mu.Unlock()

	zap.L().Info("queue: recovered runs",
		zap.Int("runs", len(runs)),
		zap.Int("pending", len(queued)),
		zap.Int("demoted", demoted),
	)
	metrics.SetQueuePending(len(queued))

	if len(runs) == 0 {
		return nil
	}
	return q.persist(ctx)
}

// Start launches the processing loop. The loop stops when ctx is cancelled;
// a run already executing is not cancelled.
func (q *JobQueue) Start(ctx context.Context) {
	q.once.Do(func() {
		close(q.started)
		go q.loop(ctx)
	})
}

// Done is closed when the loop has stopped.
func (q *JobQueue) Done() <-chan struct{} { return q.stopped }

// Submit enqueues a run for opts and returns it once the new snapshot has
// been persisted.
func (q *JobQueue) Submit(ctx context.Context, opts model.RunOptions) (model.Run, error) {
	select {
	case <-q.started:
	default:
		return model.Run{}, ErrNotStarted
	}

	req := submitRequest{opts: opts, reply: make(chan submitReply, 1)}
	select {
	case q.submitCh <- req:
	case <-q.stopped:
		return model.Run{}, ErrClosed
	case <-ctx.Done():
		return model.Run{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.run, rep.err
	case <-ctx.Done():
		return model.Run{}, ctx.Err()
	}
}

// Get returns a copy of the run with id.
func (q *JobQueue) Get(id string) (model.Run, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	r, ok := q.runs[id]
	if !ok {
		return model.Run{}, false
	}
	return *r, true
}

// List returns copies of every run ordered by creation time.
func (q *JobQueue) List() []model.Run {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.snapshotLocked()
}

// Pending returns the ids waiting to run, in order.
func (q *JobQueue) Pending() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]string, len(q.pending))
	copy(out, q.pending)
	return out
}

// Stats aggregates every known run.
func (q *JobQueue) Stats() model.RunStats {
	return BuildStats(q.List())
}

func (q *JobQueue) loop(ctx context.Context) {
	defer close(q.stopped)
	log := zap.L().With(zap.String("component", "queue"))

	q.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("queue: loop stopped")
			return
		case req := <-q.submitCh:
			run, err := q.enqueue(ctx, req.opts)
			req.reply <- submitReply{run: run, err: err}
			q.dispatch(ctx)
		case out := <-q.doneCh:
			q.complete(ctx, out)
			q.dispatch(ctx)
		}
	}
}

func (q *JobQueue) enqueue(ctx context.Context, opts model.RunOptions) (model.Run, error) {
	run := &model.Run{
		ID:        q.newID(),
		Status:    model.RunStatusQueued,
		CreatedAt: q.now(),
		Options:   opts,
	}

	q.mu.Lock()
	q.runs[run.ID] = run
	q.pending = append(q.pending, run.ID)
	pending := len(q.pending)
	q.mu.Unlock()

	if err := q.persist(ctx); err != nil {
		q.mu.Lock()
		delete(q.runs, run.ID)
		q.pending = q.pending[:len(q.pending)-1]
		q.mu.Unlock()
		return model.Run{}, err
	}
	metrics.SetQueuePending(pending)
	zap.L().Info("queue: run submitted", zap.String("run_id", run.ID))
	return *run, nil
}

// dispatch starts the next pending run unless one is already executing.
func (q *JobQueue) dispatch(ctx context.Context) {
	q.mu.Lock()
	if q.active != "" || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	run := q.runs[id]
	started := q.now()
	run.Status = model.RunStatusRunning
	run.StartedAt = &started
	q.active = id
	opts := run.Options
	pending := len(q.pending)
	q.mu.Unlock()

	metrics.SetQueuePending(pending)
	if err := q.persist(ctx); err != nil {
		zap.L().Warn("queue: failed to persist running state", zap.String("run_id", id), zap.Error(err))
	}
	zap.L().Info("queue: run started", zap.String("run_id", id))

	runCtx := context.WithoutCancel(ctx)
	go func() {
		result, err := q.runner.Run(runCtx, opts)
		select {
		case q.doneCh <- outcome{id: id, result: result, err: err}:
		case <-q.stopped:
		}
	}()
}

func (q *JobQueue) complete(ctx context.Context, out outcome) {
	log := zap.L().With(zap.String("run_id", out.id))

	q.mu.Lock()
	run := q.runs[out.id]
	finished := q.now()
	run.FinishedAt = &finished
	if out.err != nil {
		run.Status = model.RunStatusFailed
		run.Error = &model.RunError{Kind: pipeline.Classify(out.err), Message: out.err.Error()}
	} else {
		run.Status = model.RunStatusCompleted
		run.Result = out.result
	}
	var duration time.Duration
	if run.StartedAt != nil {
		duration = finished.Sub(*run.StartedAt)
	}
	status := run.Status
	q.active = ""
	q.mu.Unlock()

	metrics.ObserveRun(string(status), duration)
	if err := q.persist(ctx); err != nil {
		log.Warn("queue: failed to persist finished state", zap.Error(err))
	}
	if out.err != nil {
		log.Error("queue: run failed", zap.Error(out.err))
		return
	}
	appended := 0
	if out.result != nil {
		appended = out.result.Appended
	}
	log.Info("queue: run completed", zap.Int("appended", appended))
}

// persist writes the full snapshot. Writes are not cancelled with the loop.
func (q *JobQueue) persist(ctx context.Context) error {
	q.mu.RLock()
	runs := q.snapshotLocked()
	q.mu.RUnlock()
	return eris.Wrap(q.store.SaveRuns(context.WithoutCancel(ctx), runs), "queue: persist runs")
}

func (q *JobQueue) snapshotLocked() []model.Run {
	out := make([]model.Run, 0, len(q.runs))
	for _, r := range q.runs {
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
