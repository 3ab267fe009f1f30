// Package store persists the run snapshot and per-domain crawl state.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// RunSnapshotStore loads and saves the complete set of known runs. SaveRuns
// replaces whatever was stored before.
type RunSnapshotStore interface {
	LoadRuns(ctx context.Context) ([]model.Run, error)
	SaveRuns(ctx context.Context, runs []model.Run) error
}

// DomainStateStore records the outcome of crawling each domain.
type DomainStateStore interface {
	// GetDomainState returns nil and no error for an unknown key.
	GetDomainState(ctx context.Context, key string) (*model.DomainState, error)
	RecordSuccess(ctx context.Context, key string, pagesFetched int) error
	RecordFailure(ctx context.Context, key, message string) error
	AppendVisited(ctx context.Context, key string, urls []string) error
	ClearDomain(ctx context.Context, key string) error
	ListDomainStates(ctx context.Context) ([]model.DomainState, error)
}

// Store is the full persistence port.
type Store interface {
	RunSnapshotStore
	DomainStateStore

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store selected by driver ("sqlite", "postgres", or
// "memory") and runs its migration.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "memory":
		st = NewMemory()
	case "postgres":
		st, err = NewPostgres(ctx, dsn, poolCfg)
	case "sqlite", "":
		st, err = NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// mergeVisited appends the urls not already present, keeping order.
func mergeVisited(existing, urls []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(urls))
	out := make([]string, 0, len(existing)+len(urls))
	for _, list := range [][]string{existing, urls} {
		for _, u := range list {
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

func encodeVisited(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return b, eris.Wrap(err, "store: marshal visited")
}

func decodeVisited(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v []string
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal visited")
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}
