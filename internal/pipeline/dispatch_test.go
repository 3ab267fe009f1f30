package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/llm"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/store"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func acmeDocs() []model.Document {
	return []model.Document{
		{URL: "https://acme.test", Markdown: "# Acme\nWe build widgets."},
		{URL: "https://acme.test/contact", Markdown: "Contact us at the office."},
	}
}

func newTestDispatcher(crawler *mockCrawler, svc llm.Service, st store.DomainStateStore) *Dispatcher {
	return NewDispatcher(crawler, NewPageExtractor(svc, 0.6, "US"), svc, st, func() time.Time { return fixedNow })
}

func TestProcessTarget_Success(t *testing.T) {
	t.Parallel()

	crawler := new(mockCrawler)
	crawler.On("Crawl", mock.Anything, "https://acme.test", mock.Anything).Return(acmeDocs(), nil)
	st := store.NewMemory()

	d := newTestDispatcher(crawler, llm.NewMockService(), st)
	res := d.ProcessTarget(context.Background(), model.Target{URL: "acme.test"}, TargetOptions{})

	require.True(t, res.Success, "err: %v", res.Err)
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.DocumentsFetched)
	require.NotNil(t, res.Lead)
	assert.Equal(t, "Acme", model.Deref(res.Lead.Company))
	require.NotNil(t, res.SheetRow)
	assert.Equal(t, "contact@acme.test", res.SheetRow.Emails)
	assert.Equal(t, LeadID("acme.test", "contact@acme.test"), res.SheetRow.LeadID)
	assert.Equal(t, "2026-03-04T05:06:07Z", res.SheetRow.Timestamp)
	// Two extractions plus scoring and summary.
	assert.Len(t, res.Usage, 4)

	state, err := st.GetDomainState(context.Background(), "acme.test")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.NotNil(t, state.LastSuccess)
	assert.Equal(t, 2, state.PagesFetched)
}

func TestProcessTarget_CrawlError(t *testing.T) {
	t.Parallel()

	crawler := new(mockCrawler)
	crawler.On("Crawl", mock.Anything, "https://down.test", mock.Anything).Return(nil, errors.New("firecrawl: 502"))
	st := store.NewMemory()

	res := newTestDispatcher(crawler, llm.NewMockService(), st).
		ProcessTarget(context.Background(), model.Target{URL: "https://down.test"}, TargetOptions{})

	assert.False(t, res.Success)
	assert.Equal(t, model.FailureFetch, Classify(res.Err))
	assert.Contains(t, res.Err.Error(), "502")

	state, err := st.GetDomainState(context.Background(), "down.test")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.LastFailure)
	assert.Contains(t, state.LastFailure.Message, "502")
}

func TestProcessTarget_NoDocuments(t *testing.T) {
	t.Parallel()

	crawler := new(mockCrawler)
	crawler.On("Crawl", mock.Anything, mock.Anything, mock.Anything).Return([]model.Document{}, nil)

	res := newTestDispatcher(crawler, llm.NewMockService(), nil).
		ProcessTarget(context.Background(), model.Target{URL: "empty.test"}, TargetOptions{})

	assert.False(t, res.Success)
	assert.Equal(t, model.FailureFetch, Classify(res.Err))
	assert.Equal(t, "No documents returned from crawl", res.Err.Error())
}

func TestProcessTarget_AllPagesFail(t *testing.T) {
	t.Parallel()

	crawler := new(mockCrawler)
	crawler.On("Crawl", mock.Anything, mock.Anything, mock.Anything).Return(acmeDocs(), nil)
	svc := new(mockLLM)
	svc.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("schema violation"))

	res := newTestDispatcher(crawler, svc, nil).
		ProcessTarget(context.Background(), model.Target{URL: "acme.test"}, TargetOptions{PageConcurrency: 1})

	assert.False(t, res.Success)
	assert.Equal(t, model.FailureExtraction, Classify(res.Err))
	assert.Equal(t, 2, res.DocumentsFetched)
	svc.AssertNumberOfCalls(t, "Extract", 4)
	svc.AssertNotCalled(t, "Score", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessTarget_PartialPageFailure(t *testing.T) {
	t.Parallel()

	crawler := new(mockCrawler)
	crawler.On("Crawl", mock.Anything, mock.Anything, mock.Anything).Return(acmeDocs(), nil)

	svc := new(mockLLM)
	failing := mock.MatchedBy(func(req llm.ExtractRequest) bool { return req.Document.URL == "https://acme.test/contact" })
	passing := mock.MatchedBy(func(req llm.ExtractRequest) bool { return req.Document.URL == "https://acme.test" })
	svc.On("Extract", mock.Anything, failing).Return(nil, errors.New("timeout"))
	svc.On("Extract", mock.Anything, passing).Return(extractResponse(pageFields("Acme", 0.9), "m"), nil)
	svc.On("Score", mock.Anything, mock.Anything, "", "").
		Return(&llm.Response[model.ScoringResult]{JSON: model.ScoringResult{FitScore: 50, Confidence: 0.5}}, nil)
	svc.On("Summarize", mock.Anything, mock.Anything, "").
		Return(&llm.Response[model.SummaryResult]{JSON: model.SummaryResult{Summary: "ok"}}, nil)

	res := newTestDispatcher(crawler, svc, nil).
		ProcessTarget(context.Background(), model.Target{URL: "acme.test"}, TargetOptions{})

	require.True(t, res.Success)
	assert.Equal(t, []string{"https://acme.test"}, res.Lead.SourceURLs)
	// Usage without a model is not attributed.
	assert.Len(t, res.Usage, 1)

	require.Len(t, res.PageFailures, 1)
	var pe *PageError
	require.ErrorAs(t, res.PageFailures[0], &pe)
	assert.Equal(t, "https://acme.test/contact", pe.URL)
	assert.Equal(t, model.FailureExtraction, Classify(res.PageFailures[0]))
}

func TestProcessTarget_PageConcurrencyBound(t *testing.T) {
	t.Parallel()

	docs := make([]model.Document, 0, 6)
	for _, path := range []string{"", "/about", "/contact", "/team", "/pricing", "/blog"} {
		docs = append(docs, model.Document{URL: "https://acme.test" + path, Markdown: "# Acme"})
	}

	for _, limit := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			t.Parallel()

			crawler := new(mockCrawler)
			crawler.On("Crawl", mock.Anything, mock.Anything, mock.Anything).Return(docs, nil)
			gauge := &inFlight{want: limit}
			svc := trackingLLM{Service: llm.NewMockService(), gauge: gauge}

			res := newTestDispatcher(crawler, svc, nil).
				ProcessTarget(context.Background(), model.Target{URL: "acme.test"}, TargetOptions{PageConcurrency: limit})

			require.True(t, res.Success, "err: %v", res.Err)
			assert.Empty(t, res.PageFailures)
			assert.Equal(t, limit, gauge.Peak())
		})
	}
}

func TestProcessTarget_ScoringFails(t *testing.T) {
	t.Parallel()

	crawler := new(mockCrawler)
	crawler.On("Crawl", mock.Anything, mock.Anything, mock.Anything).Return(acmeDocs()[:1], nil)
	svc := new(mockLLM)
	svc.On("Extract", mock.Anything, mock.Anything).Return(extractResponse(pageFields("Acme", 0.9), "m"), nil)
	svc.On("Score", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("bad json"))

	res := newTestDispatcher(crawler, svc, store.NewMemory()).
		ProcessTarget(context.Background(), model.Target{URL: "acme.test"}, TargetOptions{})

	assert.False(t, res.Success)
	assert.Equal(t, model.FailureExtraction, Classify(res.Err))
	assert.NotNil(t, res.Lead)
	assert.Nil(t, res.SheetRow)
}

func TestProcessTarget_PassesCrawlOptions(t *testing.T) {
	t.Parallel()

	opts := model.CrawlOptions{Depth: 3, PageLimit: 10, IncludePaths: []string{"/about"}}
	crawler := new(mockCrawler)
	crawler.On("Crawl", mock.Anything, "https://acme.test", opts).Return(acmeDocs(), nil)

	res := newTestDispatcher(crawler, llm.NewMockService(), nil).
		ProcessTarget(context.Background(), model.Target{URL: "https://acme.test"}, TargetOptions{Crawl: opts, MaxPages: 1})

	require.True(t, res.Success)
	assert.Len(t, res.Lead.SourceURLs, 1, "only the prioritized page is extracted")
	crawler.AssertExpectations(t)
}
