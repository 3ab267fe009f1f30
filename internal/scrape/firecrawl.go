package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/resilience"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
	"github.com/ShaunandDavid/lead-generator-firecrawl/pkg/firecrawl"
)

// FirecrawlCrawler crawls a site through the Firecrawl API and records the
// visited URLs per domain.
type FirecrawlCrawler struct {
	client      firecrawl.Client
	breaker     *resilience.CircuitBreaker
	retry       resilience.RetryConfig
	visited     VisitedRecorder
	pollTimeout time.Duration
}

// FirecrawlOption configures a FirecrawlCrawler.
type FirecrawlOption func(*FirecrawlCrawler)

// WithVisitedRecorder records crawled URLs after each successful crawl.
func WithVisitedRecorder(v VisitedRecorder) FirecrawlOption {
	return func(f *FirecrawlCrawler) { f.visited = v }
}

// WithBreaker guards every crawl with cb.
func WithBreaker(cb *resilience.CircuitBreaker) FirecrawlOption {
	return func(f *FirecrawlCrawler) { f.breaker = cb }
}

// WithRetry sets the retry policy for starting a crawl.
func WithRetry(cfg resilience.RetryConfig) FirecrawlOption {
	return func(f *FirecrawlCrawler) { f.retry = cfg }
}

// WithCrawlTimeout bounds polling for a single crawl. Zero waits forever.
func WithCrawlTimeout(d time.Duration) FirecrawlOption {
	return func(f *FirecrawlCrawler) { f.pollTimeout = d }
}

// NewFirecrawlCrawler creates a FirecrawlCrawler.
func NewFirecrawlCrawler(client firecrawl.Client, opts ...FirecrawlOption) *FirecrawlCrawler {
	f := &FirecrawlCrawler{
		client: client,
		retry:  resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.breaker == nil {
		f.breaker = resilience.NewCircuitBreaker(resilience.BreakerConfig{Name: "firecrawl"})
	}
	return f
}

// Crawl implements Crawler.
func (f *FirecrawlCrawler) Crawl(ctx context.Context, startURL string, opts model.CrawlOptions) ([]model.Document, error) {
	log := zap.L().With(zap.String("start_url", startURL))
	log.Info("firecrawl: starting crawl",
		zap.Int("limit", opts.PageLimit),
		zap.Int("max_depth", opts.Depth),
	)

	status, err := resilience.ExecuteVal(ctx, f.breaker, func(ctx context.Context) (*firecrawl.CrawlStatusResponse, error) {
		return f.crawl(ctx, startURL, opts)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "firecrawl: crawl %s", startURL)
	}

	docs := make([]model.Document, 0, len(status.Data))
	urls := make([]string, 0, len(status.Data))
	for _, page := range status.Data {
		doc := toDocument(page)
		docs = append(docs, doc)
		if doc.URL != "" {
			urls = append(urls, doc.URL)
		}
	}

	if f.visited != nil && len(urls) > 0 {
		key := signals.Hostname(startURL)
		if err := f.visited.AppendVisited(ctx, key, urls); err != nil {
			log.Warn("firecrawl: failed to record visited urls", zap.Error(err))
		}
	}

	log.Info("firecrawl: crawl complete",
		zap.Int("pages", len(docs)),
		zap.String("status", status.Status),
	)
	return docs, nil
}

func (f *FirecrawlCrawler) crawl(ctx context.Context, startURL string, opts model.CrawlOptions) (*firecrawl.CrawlStatusResponse, error) {
	req := firecrawl.CrawlRequest{
		URL:          startURL,
		MaxDepth:     opts.Depth,
		Limit:        opts.PageLimit,
		IncludePaths: opts.IncludePaths,
		ExcludePaths: opts.ExcludePaths,
		ScrapeOptions: firecrawl.ScrapeOptions{
			Formats:         firecrawl.DefaultFormats,
			OnlyMainContent: false,
		},
		DeduplicateSimilarURLs: true,
		IgnoreQueryParameters:  true,
		Delay:                  opts.Delay,
	}

	retry := f.retry
	retry.OnRetry = resilience.RetryLogger("firecrawl", "crawl")
	started, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*firecrawl.CrawlResponse, error) {
		resp, err := f.client.Crawl(ctx, req)
		return resp, markTransient(err)
	})
	if err != nil {
		return nil, err
	}

	pollOpts := []firecrawl.PollOption{firecrawl.WithPollTimeout(f.pollTimeout)}
	if opts.PollInterval > 0 {
		interval := time.Duration(opts.PollInterval) * time.Second
		pollOpts = append(pollOpts, firecrawl.WithPollInterval(interval), firecrawl.WithPollCap(interval))
	}
	status, err := firecrawl.PollCrawl(ctx, f.client, started.ID, pollOpts...)
	return status, markTransient(err)
}

func markTransient(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *firecrawl.APIError
	if errors.As(err, &apiErr) {
		return resilience.WrapStatus(err, apiErr.StatusCode)
	}
	return err
}

func toDocument(p firecrawl.PageData) model.Document {
	return model.Document{
		URL:      p.PageURL(),
		Markdown: p.Markdown,
		HTML:     p.HTML,
		Links:    p.Links,
		Metadata: model.DocumentMetadata{
			Title:       p.Metadata.Title,
			Description: p.Metadata.Description,
			SourceURL:   p.Metadata.SourceURL,
			StatusCode:  p.Metadata.StatusCode,
		},
	}
}
