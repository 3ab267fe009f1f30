package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/llm"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/scrape"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/store"
)

// DefaultPageConcurrency bounds concurrent page extractions per target.
const DefaultPageConcurrency = 6

// TargetOptions controls how one target is crawled and enriched.
type TargetOptions struct {
	Crawl           model.CrawlOptions
	ICP             string
	Model           string
	MaxPages        int
	PageConcurrency int
}

// TargetResult is the outcome of processing one target. Err is set exactly
// when Success is false. PageFailures holds the *PageError of every page that
// failed while at least one sibling page succeeded.
type TargetResult struct {
	Target           model.Target
	Success          bool
	DocumentsFetched int
	Lead             *model.AggregatedLead
	SheetRow         *model.SheetRow
	Scoring          *model.ScoringResult
	Summary          *model.SummaryResult
	Usage            []model.ModelUsage
	PageFailures     []error
	Err              error
}

// Dispatcher runs the fetch, extract, aggregate, score and summarize steps
// for a single target.
type Dispatcher struct {
	crawler   scrape.Crawler
	extractor *PageExtractor
	llm       llm.Service
	domains   store.DomainStateStore
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher. domains may be nil.
func NewDispatcher(crawler scrape.Crawler, extractor *PageExtractor, svc llm.Service, domains store.DomainStateStore, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{crawler: crawler, extractor: extractor, llm: svc, domains: domains, now: now}
}

// ProcessTarget enriches target and records the outcome in the domain state
// store. It never returns an error: failures are reported in the result.
func (d *Dispatcher) ProcessTarget(ctx context.Context, target model.Target, opts TargetOptions) TargetResult {
	key := signals.Hostname(target.URL)
	log := zap.L().With(zap.String("target", target.URL))

	res := d.process(ctx, target, opts)
	res.Target = target

	if res.Success {
		if d.domains != nil {
			if err := d.domains.RecordSuccess(ctx, key, res.DocumentsFetched); err != nil {
				log.Warn("pipeline: failed to record domain success", zap.Error(err))
			}
		}
		return res
	}

	log.Error("pipeline: target failed",
		zap.String("kind", string(Classify(res.Err))),
		zap.Error(res.Err),
	)
	if d.domains != nil {
		if err := d.domains.RecordFailure(ctx, key, res.Err.Error()); err != nil {
			log.Warn("pipeline: failed to record domain failure", zap.Error(err))
		}
	}
	return res
}

func (d *Dispatcher) process(ctx context.Context, target model.Target, opts TargetOptions) TargetResult {
	docs, err := d.crawler.Crawl(ctx, signals.EnsureHTTP(target.URL), opts.Crawl)
	if err != nil {
		return TargetResult{Err: fetchError("crawl failed", err), DocumentsFetched: len(docs)}
	}
	if len(docs) == 0 {
		return TargetResult{Err: fetchError("No documents returned from crawl", nil)}
	}
	res := TargetResult{DocumentsFetched: len(docs)}

	domain := signals.NormalizeDomain(target.URL)
	prioritized := Prioritize(docs, opts.MaxPages)
	zap.L().Info("pipeline: processing domain",
		zap.String("domain", domain),
		zap.Int("total_pages", len(docs)),
		zap.Int("prioritized", len(prioritized)),
	)

	pages, pageErrs, err := d.extractPages(ctx, prioritized, domain, opts)
	if err != nil {
		res.Err = err
		return res
	}
	res.PageFailures = pageErrs

	lead := Aggregate(domain, pages)
	res.Lead = &lead
	res.Usage = append(res.Usage, lead.Usage...)

	scoring, err := d.llm.Score(ctx, lead, opts.ICP, opts.Model)
	if err != nil {
		res.Err = extractionError("scoring failed", err)
		return res
	}
	res.Scoring = &scoring.JSON
	res.Usage = appendUsage(res.Usage, scoring.Model, scoring.Usage)

	summary, err := d.llm.Summarize(ctx, lead, opts.Model)
	if err != nil {
		res.Err = extractionError("summary failed", err)
		return res
	}
	res.Summary = &summary.JSON
	res.Usage = appendUsage(res.Usage, summary.Model, summary.Usage)

	row := BuildSheetRow(lead, res.Scoring, res.Summary, d.now())
	res.SheetRow = &row
	res.Success = true
	return res
}

// extractPages fans out page extraction. A failing page does not cancel its
// siblings; results and page errors keep the prioritized order.
func (d *Dispatcher) extractPages(ctx context.Context, docs []model.Document, domain string, opts TargetOptions) ([]model.PageSignalSet, []error, error) {
	limit := opts.PageConcurrency
	if limit <= 0 {
		limit = DefaultPageConcurrency
	}

	results := make([]*model.PageSignalSet, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, doc := range docs {
		g.Go(func() error {
			results[i], errs[i] = d.extractor.ExtractPage(ctx, doc, domain, opts.ICP, opts.Model)
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]model.PageSignalSet, 0, len(docs))
	var pageErrs []error
	for i, r := range results {
		if r != nil {
			pages = append(pages, *r)
			continue
		}
		pageErrs = append(pageErrs, errs[i])
	}
	if len(pages) == 0 {
		var first error
		if len(pageErrs) > 0 {
			first = pageErrs[0]
		}
		return nil, nil, extractionError("all pages failed extraction", first)
	}
	return pages, pageErrs, nil
}

func appendUsage(list []model.ModelUsage, modelID string, u *model.TokenUsage) []model.ModelUsage {
	if u == nil || modelID == "" {
		return list
	}
	return append(list, model.ModelUsage{Model: modelID, Usage: *u})
}
