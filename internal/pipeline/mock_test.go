package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/llm"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// --- LLM Mock ---

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Extract(ctx context.Context, req llm.ExtractRequest) (*llm.Response[model.PageFields], error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response[model.PageFields]), args.Error(1)
}

func (m *mockLLM) Score(ctx context.Context, lead model.AggregatedLead, icp, modelID string) (*llm.Response[model.ScoringResult], error) {
	args := m.Called(ctx, lead, icp, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response[model.ScoringResult]), args.Error(1)
}

func (m *mockLLM) Summarize(ctx context.Context, lead model.AggregatedLead, modelID string) (*llm.Response[model.SummaryResult], error) {
	args := m.Called(ctx, lead, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response[model.SummaryResult]), args.Error(1)
}

// --- Crawler Mock ---

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) Crawl(ctx context.Context, startURL string, opts model.CrawlOptions) ([]model.Document, error) {
	args := m.Called(ctx, startURL, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

// --- Sheet Sync Mock ---

type mockSheets struct {
	mock.Mock
}

func (m *mockSheets) EnsureHeader(ctx context.Context, sheetID, tab string) error {
	args := m.Called(ctx, sheetID, tab)
	return args.Error(0)
}

func (m *mockSheets) FetchExistingKeys(ctx context.Context, sheetID, tab string) (map[string]struct{}, error) {
	args := m.Called(ctx, sheetID, tab)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *mockSheets) AppendRows(ctx context.Context, rows []model.SheetRow, sheetID, tab string) error {
	args := m.Called(ctx, rows, sheetID, tab)
	return args.Error(0)
}

func (m *mockSheets) CreateSpreadsheet(ctx context.Context, spec SpreadsheetSpec) (*Spreadsheet, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Spreadsheet), args.Error(1)
}

// --- Fakes ---

// fakeCrawler serves fixed documents per start URL.
type fakeCrawler struct {
	mu    sync.Mutex
	docs  map[string][]model.Document
	calls []string
}

func (f *fakeCrawler) Crawl(_ context.Context, startURL string, _ model.CrawlOptions) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, startURL)
	return f.docs[startURL], nil
}

// memorySheet is an in-memory SheetSync keyed by spreadsheet id.
type memorySheet struct {
	mu   sync.Mutex
	rows map[string][]model.SheetRow
}

func newMemorySheet() *memorySheet {
	return &memorySheet{rows: map[string][]model.SheetRow{}}
}

func (s *memorySheet) EnsureHeader(context.Context, string, string) error { return nil }

func (s *memorySheet) FetchExistingKeys(_ context.Context, sheetID, _ string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := map[string]struct{}{}
	for _, r := range s.rows[sheetID] {
		keys[r.LeadID] = struct{}{}
	}
	return keys, nil
}

func (s *memorySheet) AppendRows(_ context.Context, rows []model.SheetRow, sheetID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[sheetID] = append(s.rows[sheetID], rows...)
	return nil
}

func (s *memorySheet) CreateSpreadsheet(_ context.Context, spec SpreadsheetSpec) (*Spreadsheet, error) {
	return &Spreadsheet{ID: "sheet-" + spec.Title, URL: "https://docs.google.com/spreadsheets/d/sheet-" + spec.Title}, nil
}

// --- Helpers ---

func pageFields(company string, confidence float64) model.PageFields {
	return model.PageFields{
		CompanyName:    model.StringPtr(company),
		Confidence:     confidence,
		ContactURLs:    []string{},
		Emails:         []model.ContactSignal{},
		Phones:         []model.ContactSignal{},
		LinkedInURLs:   []string{},
		OtherSocial:    []string{},
		MissingSignals: []string{},
	}
}

func extractResponse(fields model.PageFields, modelID string) *llm.Response[model.PageFields] {
	return &llm.Response[model.PageFields]{
		JSON:  fields,
		Usage: &model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		Model: modelID,
	}
}

func isEscalated(escalate bool) any {
	return mock.MatchedBy(func(req llm.ExtractRequest) bool { return req.Escalate == escalate })
}

// failingPageLLM answers like llm.MockService except for one page URL.
type failingPageLLM struct {
	llm.Service
	url string
}

func (f failingPageLLM) Extract(ctx context.Context, req llm.ExtractRequest) (*llm.Response[model.PageFields], error) {
	if req.Document.URL == f.url {
		return nil, errors.New("schema violation")
	}
	return f.Service.Extract(ctx, req)
}

// inFlight records the peak number of concurrent callers. Each caller holds
// its slot until want callers are inside or a short deadline passes, so a
// pool that admits want callers reaches exactly want.
type inFlight struct {
	mu      sync.Mutex
	current int
	peak    int
	want    int
}

func (f *inFlight) enter() {
	f.mu.Lock()
	f.current++
	if f.current > f.peak {
		f.peak = f.current
	}
	f.mu.Unlock()

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		reached := f.peak >= f.want
		f.mu.Unlock()
		if reached {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond)
}

func (f *inFlight) leave() {
	f.mu.Lock()
	f.current--
	f.mu.Unlock()
}

func (f *inFlight) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// trackingLLM wraps llm.MockService and records concurrent Extract calls.
type trackingLLM struct {
	llm.Service
	gauge *inFlight
}

func (t trackingLLM) Extract(ctx context.Context, req llm.ExtractRequest) (*llm.Response[model.PageFields], error) {
	t.gauge.enter()
	defer t.gauge.leave()
	return t.Service.Extract(ctx, req)
}

// trackingCrawler serves one page per start URL and records concurrent
// crawls.
type trackingCrawler struct {
	gauge *inFlight
}

func (t trackingCrawler) Crawl(_ context.Context, startURL string, _ model.CrawlOptions) ([]model.Document, error) {
	t.gauge.enter()
	defer t.gauge.leave()
	return []model.Document{{URL: startURL, Markdown: "# Home"}}, nil
}
