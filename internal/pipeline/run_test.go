package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/cost"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/llm"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/resilience"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/scrape"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/store"
)

func acmeCrawler() *fakeCrawler {
	return &fakeCrawler{docs: map[string][]model.Document{
		"https://acme.test": {
			{URL: "https://acme.test", Markdown: "# Acme\nWidgets for everyone.", Metadata: model.DocumentMetadata{Title: "Acme"}},
			{URL: "https://acme.test/contact", Markdown: "Contact us today."},
		},
	}}
}

func newTestPipeline(crawler scrape.Crawler, sheets SheetSync, settings Settings) (*Pipeline, *store.MemoryStore) {
	st := store.NewMemory()
	p := New(Deps{
		Crawler: crawler,
		LLM:     llm.NewMockService(),
		Sheets:  sheets,
		Domains: st,
		Cost:    cost.NewCalculator(cost.DefaultRates()),
		Now:     func() time.Time { return fixedNow },
	}, settings)
	return p, st
}

func TestRun_EndToEndDryRun(t *testing.T) {
	t.Parallel()

	p, st := newTestPipeline(acmeCrawler(), nil, Settings{})
	res, err := p.Run(context.Background(), model.RunOptions{URL: "acme.test", DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, 0, res.Appended)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 1, res.TargetsProcessed)
	require.Len(t, res.Leads, 1)

	row := res.Leads[0]
	assert.Equal(t, "Acme", row.Company)
	assert.Equal(t, "contact@acme.test", row.Emails)
	assert.Equal(t, "ok", row.Status)
	assert.Equal(t, "acme.test", row.Domain)

	m := res.Metrics
	assert.Equal(t, 1, m.Totals.TargetsDiscovered)
	assert.Equal(t, 1, m.Totals.Processed)
	assert.Equal(t, 1, m.Totals.Successes)
	assert.Equal(t, 0, m.Totals.Failures)
	assert.Equal(t, 2, m.Firecrawl.TargetPages)
	assert.Equal(t, 2, m.Firecrawl.TotalPages)
	assert.InDelta(t, 2*19.0/3000, m.Firecrawl.EstimatedCostUSD, 1e-9)
	assert.Equal(t, 4, m.LLM.TotalCalls)
	assert.Equal(t, int64(4*48), m.LLM.Models[llm.MockModel].TotalTokens)

	state, err := st.GetDomainState(context.Background(), "acme.test")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 2, state.PagesFetched)
}

func TestRun_CreatesSheetAndDedupsAcrossRuns(t *testing.T) {
	t.Parallel()

	sheet := newMemorySheet()
	p, _ := newTestPipeline(acmeCrawler(), sheet, Settings{})

	first, err := p.Run(context.Background(), model.RunOptions{URL: "acme.test"})
	require.NoError(t, err)
	assert.True(t, first.CreatedNewSheet)
	assert.Equal(t, "sheet-2026-03-04_acme-test", first.SheetID)
	assert.Equal(t, 1, first.Appended)

	second, err := p.Run(context.Background(), model.RunOptions{URL: "acme.test", ReuseSheet: true, SheetID: first.SheetID})
	require.NoError(t, err)
	assert.False(t, second.CreatedNewSheet)
	assert.Equal(t, 0, second.Appended)
	assert.Empty(t, second.Leads)
	assert.Len(t, sheet.rows[first.SheetID], 1)
}

func TestRun_CreateSpreadsheetSpec(t *testing.T) {
	t.Parallel()

	sheets := new(mockSheets)
	sheets.On("CreateSpreadsheet", mock.Anything, SpreadsheetSpec{
		Title:     "2026-03-04_plumbers-austin",
		SheetName: "Prospects",
		ShareWith: []string{"ops@acme.test", "me@acme.test"},
		FolderID:  "folder-1",
	}).Return(&Spreadsheet{ID: "abc"}, nil)
	sheets.On("EnsureHeader", mock.Anything, "abc", "Prospects").Return(nil)
	sheets.On("FetchExistingKeys", mock.Anything, "abc", "Prospects").Return(nil, errors.New("read failed"))
	sheets.On("AppendRows", mock.Anything, mock.MatchedBy(func(rows []model.SheetRow) bool { return len(rows) == 1 }), "abc", "Prospects").Return(nil)

	p, _ := newTestPipeline(acmeCrawler(), sheets, Settings{ShareWith: []string{"ops@acme.test"}, FolderID: "folder-1"})
	res, err := p.Run(context.Background(), model.RunOptions{
		URL:       "acme.test",
		Label:     "Plumbers Austin",
		SheetName: "Prospects",
		ShareWith: []string{"me@acme.test", "ops@acme.test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc", res.SpreadsheetURL)
	assert.Equal(t, 1, res.Appended)
	sheets.AssertExpectations(t)
}

func TestRun_AppendFailureIsRecorded(t *testing.T) {
	t.Parallel()

	sheets := new(mockSheets)
	sheets.On("EnsureHeader", mock.Anything, "sheet-1", DefaultSheetName).Return(nil)
	sheets.On("FetchExistingKeys", mock.Anything, "sheet-1", DefaultSheetName).Return(map[string]struct{}{}, nil)
	sheets.On("AppendRows", mock.Anything, mock.Anything, "sheet-1", DefaultSheetName).Return(errors.New("quota exceeded"))

	p, _ := newTestPipeline(acmeCrawler(), sheets, Settings{SheetID: "sheet-1"})
	res, err := p.Run(context.Background(), model.RunOptions{URL: "acme.test", ReuseSheet: true})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Appended)
	assert.Len(t, res.Leads, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.FailureSync, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Message, "quota exceeded")
}

func TestRun_CreatePermissionDenied(t *testing.T) {
	t.Parallel()

	sheets := new(mockSheets)
	sheets.On("CreateSpreadsheet", mock.Anything, mock.Anything).
		Return(nil, resilience.WrapStatus(errors.New("forbidden"), 403))

	p, _ := newTestPipeline(acmeCrawler(), sheets, Settings{})
	_, err := p.Run(context.Background(), model.RunOptions{URL: "acme.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, model.FailureSync, Classify(err))
}

func TestRun_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    model.RunOptions
		wantMsg string
	}{
		{"no inputs", model.RunOptions{DryRun: true}, "Provide at least one --url or --domains file"},
		{"folder without domain", model.RunOptions{HTMLFolder: "./pages", DryRun: true}, "when using --html-folder"},
		{"folder with two domains", model.RunOptions{URLs: []string{"a.test", "b.test"}, HTMLFolder: "./pages", DryRun: true}, "single domain"},
		{"reuse without sheet", model.RunOptions{URL: "acme.test", ReuseSheet: true}, "SHEET_ID is not configured"},
		{"missing domains file", model.RunOptions{DomainsFile: "/nonexistent/domains.txt", DryRun: true}, "domains file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, _ := newTestPipeline(acmeCrawler(), newMemorySheet(), Settings{})
			_, err := p.Run(context.Background(), tt.opts)
			require.Error(t, err)
			assert.Equal(t, model.FailureConfiguration, Classify(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRun_PreflightFailure(t *testing.T) {
	t.Parallel()

	var gotDryRun bool
	p := New(Deps{
		Crawler: acmeCrawler(),
		LLM:     llm.NewMockService(),
		Preflight: func(dryRun bool) error {
			gotDryRun = dryRun
			return errors.New("missing FIRECRAWL_API_KEY")
		},
	}, Settings{DryRun: true})

	_, err := p.Run(context.Background(), model.RunOptions{URL: "acme.test"})
	require.Error(t, err)
	assert.True(t, gotDryRun)
	assert.Equal(t, model.FailureConfiguration, Classify(err))
	assert.Contains(t, err.Error(), "FIRECRAWL_API_KEY")
}

func TestRun_DirectoryMode(t *testing.T) {
	t.Parallel()

	crawler := &fakeCrawler{docs: map[string][]model.Document{
		"https://dir.test": {{
			URL: "https://dir.test",
			HTML: `<a href="https://alpha.test">A</a><a href="https://facebook.com/dir">F</a>
				<a href="https://beta.test">B</a><a href="https://youtube.com/dir">Y</a>
				<a href="https://gamma.test">G</a>`,
		}},
		"https://alpha.test": {{URL: "https://alpha.test", Markdown: "Alpha"}},
		"https://beta.test":  {{URL: "https://beta.test", Markdown: "Beta"}},
		"https://gamma.test": {{URL: "https://gamma.test", Markdown: "Gamma"}},
	}}

	p, _ := newTestPipeline(crawler, nil, Settings{DomainConcurrency: 2})
	res, err := p.Run(context.Background(), model.RunOptions{URL: "dir.test", Directory: true, DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.DirectoryMode)
	assert.Equal(t, 3, res.Metrics.Totals.TargetsDiscovered)
	assert.Equal(t, 1, res.Metrics.Firecrawl.DirectoryPages)
	assert.Equal(t, 3, res.Metrics.Firecrawl.TargetPages)
	assert.Equal(t, 4, res.Metrics.Firecrawl.TotalPages)
	require.Len(t, res.Leads, 3)
	for i, domain := range []string{"alpha.test", "beta.test", "gamma.test"} {
		assert.Equal(t, domain, res.Leads[i].Domain)
		assert.True(t, strings.HasPrefix(res.Leads[i].SourceURLs, `["https://dir.test",`), res.Leads[i].SourceURLs)
	}
}

func TestRun_NoTargetsDiscovered(t *testing.T) {
	t.Parallel()

	crawler := &fakeCrawler{docs: map[string][]model.Document{
		"https://dir.test": {{URL: "https://dir.test", Links: []string{"https://dir.test/about"}}},
	}}
	p, _ := newTestPipeline(crawler, nil, Settings{})
	res, err := p.Run(context.Background(), model.RunOptions{URL: "dir.test", Directory: true, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Appended)
	assert.Equal(t, 0, res.TargetsProcessed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "No crawl targets discovered", res.Failures[0].Message)
	assert.Equal(t, 1, res.Metrics.Firecrawl.DirectoryPages)
}

func TestRun_TargetFailureRecorded(t *testing.T) {
	t.Parallel()

	crawler := acmeCrawler()
	p, st := newTestPipeline(crawler, nil, Settings{})
	res, err := p.Run(context.Background(), model.RunOptions{URLs: []string{"acme.test", "down.test"}, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 2, res.TargetsProcessed)
	assert.Len(t, res.Leads, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.FailureFetch, res.Failures[0].Kind)
	assert.Equal(t, "down.test", res.Failures[0].Domain)
	assert.Equal(t, 1, res.Metrics.Totals.Failures)

	state, err := st.GetDomainState(context.Background(), "down.test")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.NotNil(t, state.LastFailure)
}

func TestRun_PageFailureRecorded(t *testing.T) {
	t.Parallel()

	p := New(Deps{
		Crawler: acmeCrawler(),
		LLM:     failingPageLLM{Service: llm.NewMockService(), url: "https://acme.test/contact"},
		Domains: store.NewMemory(),
		Now:     func() time.Time { return fixedNow },
	}, Settings{})
	res, err := p.Run(context.Background(), model.RunOptions{URL: "acme.test", DryRun: true})
	require.NoError(t, err)

	require.Len(t, res.Leads, 1)
	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, model.FailureExtraction, f.Kind)
	assert.Equal(t, "acme.test", f.Domain)
	assert.Equal(t, "https://acme.test/contact", f.URL)
	assert.Contains(t, f.Message, "schema violation")
	assert.Equal(t, 1, res.Metrics.Totals.Successes)
}

func TestRun_DomainConcurrencyBound(t *testing.T) {
	t.Parallel()

	urls := []string{"alpha.test", "bravo.test", "charlie.test", "delta.test", "echo.test"}
	for _, limit := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			t.Parallel()

			gauge := &inFlight{want: limit}
			p, _ := newTestPipeline(trackingCrawler{gauge: gauge}, nil, Settings{})
			res, err := p.Run(context.Background(), model.RunOptions{URLs: urls, DomainConcurrency: limit, DryRun: true})
			require.NoError(t, err)

			assert.Empty(t, res.Failures)
			assert.Len(t, res.Leads, len(urls))
			assert.Equal(t, limit, gauge.Peak())
		})
	}
}

func TestRun_DomainsFileAndLocalFolder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	domains := filepath.Join(dir, "domains.yaml")
	require.NoError(t, os.WriteFile(domains, []byte("targets:\n  - acme.test\n"), 0o600))

	local := &fakeCrawler{docs: map[string][]model.Document{
		"https://acme.test": {{URL: "file:///pages/index.html", Markdown: "Acme"}},
	}}
	st := store.NewMemory()
	var gotFolder string
	p := New(Deps{
		LLM:     llm.NewMockService(),
		Domains: st,
		LocalCrawler: func(folder string) scrape.Crawler {
			gotFolder = folder
			return local
		},
		Now: func() time.Time { return fixedNow },
	}, Settings{})

	res, err := p.Run(context.Background(), model.RunOptions{DomainsFile: domains, HTMLFolder: "/pages", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "/pages", gotFolder)
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "Acme", res.Leads[0].Company)
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "acme-test", Slugify("acme.test"))
	assert.Equal(t, "plumbers-in-austin", Slugify("  Plumbers in Austin!! "))
	assert.Equal(t, "cafe-munchen", Slugify("Café München"))
	assert.Equal(t, "run", Slugify("!!!"))
	assert.Len(t, Slugify(strings.Repeat("a", 120)), 80)
}

func TestSpreadsheetTitle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "Custom", SpreadsheetTitle([]string{"acme.test"}, model.RunOptions{Title: "Custom"}, now))
	assert.Equal(t, "2026-01-02_hvac", SpreadsheetTitle([]string{"acme.test"}, model.RunOptions{Keyword: "HVAC"}, now))
	assert.Equal(t, "2026-01-02_www-acme-test-8080", SpreadsheetTitle([]string{"www.acme.test:8080/path"}, model.RunOptions{}, now))
}
