// Package pipeline turns crawl targets into scored, deduplicated lead rows:
// fetch, prioritize, extract with escalation, aggregate, score, summarize,
// and sync to the leads sheet.
package pipeline

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/cost"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/llm"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/metrics"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/resilience"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/scrape"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/store"
)

// DefaultSheetName is the tab written to when none is configured.
const DefaultSheetName = "Leads"

// Settings are the configured defaults a run falls back to when its
// options leave a field unset.
type Settings struct {
	// MaxPages bounds a crawl; ExtractPages bounds how many of the crawled
	// pages are sent for extraction. A run's MaxPages overrides both.
	MaxPages            int
	ExtractPages        int
	MaxDepth            int
	PageConcurrency     int
	DomainConcurrency   int
	MaxBusinesses       int
	EscalationThreshold float64
	PhoneRegion         string
	Model               string
	ICP                 string
	SheetName           string
	SheetID             string
	FolderID            string
	ShareWith           []string
	PollInterval        int
	Delay               int
	IncludePaths        []string
	ExcludePaths        []string
	DryRun              bool
}

// Deps are the collaborators of a Pipeline. Sheets and Domains may be nil
// for dry runs.
type Deps struct {
	Crawler      scrape.Crawler
	LocalCrawler func(folder string) scrape.Crawler
	LLM          llm.Service
	Sheets       SheetSync
	Domains      store.DomainStateStore
	// Preflight checks credentials before any work starts.
	Preflight func(dryRun bool) error
	Cost      *cost.Calculator
	Now       func() time.Time
}

// Pipeline executes runs.
type Pipeline struct {
	deps     Deps
	settings Settings
}

// New creates a Pipeline.
func New(deps Deps, settings Settings) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.LocalCrawler == nil {
		deps.LocalCrawler = func(folder string) scrape.Crawler { return scrape.NewLocalLoader(folder) }
	}
	return &Pipeline{deps: deps, settings: settings}
}

// Run executes one run end to end. Configuration problems and sheet
// creation failures are returned as errors; per-target and append failures
// are recorded in the result.
func (p *Pipeline) Run(ctx context.Context, opts model.RunOptions) (*model.RunResult, error) {
	startedAt := p.deps.Now()
	dryRun := opts.DryRun || p.settings.DryRun
	log := zap.L().With(zap.Bool("dry_run", dryRun))

	if p.deps.Preflight != nil {
		if err := p.deps.Preflight(dryRun); err != nil {
			return nil, &kindError{kind: ErrConfiguration, cause: err}
		}
	}
	if p.deps.LLM == nil {
		return nil, configError("no model service configured")
	}

	domains, err := p.collectInputs(opts)
	if err != nil {
		return nil, err
	}

	sheetName := firstNonEmpty(opts.SheetName, p.settings.SheetName, DefaultSheetName)
	sheetID := firstNonEmpty(opts.SheetID, p.settings.SheetID)
	spreadsheetURL := SpreadsheetURL(sheetID)
	createdNewSheet := false

	switch {
	case !dryRun && !opts.ReuseSheet:
		created, err := p.createSpreadsheet(ctx, domains, opts, sheetName)
		if err != nil {
			return nil, err
		}
		sheetID, spreadsheetURL, createdNewSheet = created.ID, created.URL, true
		if spreadsheetURL == "" {
			spreadsheetURL = SpreadsheetURL(sheetID)
		}
		log.Info("pipeline: spreadsheet created",
			zap.String("sheet_id", sheetID),
			zap.String("spreadsheet_url", spreadsheetURL),
			zap.String("sheet_name", sheetName),
		)
	case !dryRun && opts.ReuseSheet:
		if sheetID == "" {
			return nil, configError("--reuse-sheet requested but SHEET_ID is not configured")
		}
		log.Info("pipeline: reusing existing spreadsheet", zap.String("sheet_id", sheetID), zap.String("sheet_name", sheetName))
	}

	existing := map[string]struct{}{}
	if !dryRun && sheetID != "" && p.deps.Sheets != nil {
		if keys, err := p.loadExistingKeys(ctx, sheetID, sheetName); err != nil {
			log.Warn("pipeline: unable to load existing lead ids", zap.Error(err))
		} else {
			existing = keys
			if len(existing) > 0 {
				log.Info("pipeline: loaded existing lead ids", zap.Int("count", len(existing)))
			}
		}
	}

	crawler := p.deps.Crawler
	if opts.HTMLFolder != "" {
		crawler = p.deps.LocalCrawler(opts.HTMLFolder)
	}
	if crawler == nil {
		return nil, configError("no crawler configured")
	}

	acc := newMetricsAccumulator(startedAt)
	var (
		failMu   sync.Mutex
		failures []model.Failure
	)
	addFailure := func(f model.Failure) {
		failMu.Lock()
		failures = append(failures, f)
		failMu.Unlock()
	}

	crawlOpts := p.crawlOptions(opts)
	domainLimit := firstPositive(opts.DomainConcurrency, p.settings.DomainConcurrency, 1)

	targets := p.discoverTargets(ctx, crawler, domains, opts, crawlOpts, domainLimit, acc, addFailure)

	result := &model.RunResult{
		Failures:        []model.Failure{},
		DryRun:          dryRun,
		SheetID:         sheetID,
		SpreadsheetURL:  spreadsheetURL,
		CreatedNewSheet: createdNewSheet,
		DirectoryMode:   opts.Directory,
	}

	if len(targets) == 0 {
		addFailure(model.Failure{Kind: model.FailureFetch, Message: "No crawl targets discovered"})
		result.Failures = failures
		result.Metrics = p.finalize(acc, 0)
		return result, nil
	}

	extractor := NewPageExtractor(p.deps.LLM, p.settings.EscalationThreshold, p.settings.PhoneRegion)
	dispatcher := NewDispatcher(crawler, extractor, p.deps.LLM, p.deps.Domains, p.deps.Now)
	targetOpts := TargetOptions{
		Crawl:           crawlOpts,
		ICP:             firstNonEmpty(opts.ICP, p.settings.ICP),
		Model:           firstNonEmpty(opts.Model, p.settings.Model),
		MaxPages:        firstPositive(opts.MaxPages, p.settings.ExtractPages),
		PageConcurrency: firstPositive(opts.PageConcurrency, p.settings.PageConcurrency, DefaultPageConcurrency),
	}

	results := make([]TargetResult, len(targets))
	var g errgroup.Group
	g.SetLimit(domainLimit)
	for i, target := range targets {
		g.Go(func() error {
			acc.startTarget()
			results[i] = dispatcher.ProcessTarget(ctx, target, targetOpts)
			acc.finishTarget(results[i])
			return nil
		})
	}
	_ = g.Wait()

	pending := make([]model.SheetRow, 0, len(results))
	for _, res := range results {
		for _, pageErr := range res.PageFailures {
			addFailure(newFailure(pageErr, res.Target.URL, ""))
		}
		if !res.Success {
			addFailure(newFailure(res.Err, res.Target.URL, ""))
			continue
		}
		if res.SheetRow == nil {
			continue
		}
		row := *res.SheetRow
		if _, dup := existing[row.LeadID]; dup {
			log.Info("pipeline: lead already exists, skipping", zap.String("domain", res.Target.URL))
			continue
		}
		prependSource(&row, res.Target.SourceDirectoryURL)
		existing[row.LeadID] = struct{}{}
		pending = append(pending, row)
		log.Info("pipeline: lead prepared", zap.String("domain", res.Target.URL), zap.String("lead_id", row.LeadID))
	}

	appended := 0
	switch {
	case dryRun:
		log.Info("pipeline: dry run completed", zap.Int("prepared", len(pending)))
	case len(pending) > 0:
		if sheetID == "" || p.deps.Sheets == nil {
			return nil, configError("No spreadsheet ID available for append. Provide SHEET_ID or allow automatic creation.")
		}
		if err := p.deps.Sheets.AppendRows(ctx, pending, sheetID, sheetName); err != nil {
			log.Error("pipeline: append failed", zap.Error(err))
			addFailure(newFailure(syncError("append rows", err), "", ""))
		} else {
			appended = len(pending)
			metrics.AddRowsAppended(appended)
		}
	}

	result.Appended = appended
	result.Failures = failures
	if result.Failures == nil {
		result.Failures = []model.Failure{}
	}
	result.TargetsProcessed = len(results)
	result.Leads = pending
	result.Metrics = p.finalize(acc, len(targets))

	log.Info("pipeline: run finished",
		zap.Int("targets", len(targets)),
		zap.Int("appended", appended),
		zap.Int("failures", len(result.Failures)),
		zap.Int64("duration_ms", result.Metrics.DurationMs),
	)
	return result, nil
}

// collectInputs returns the distinct input domains in first-seen order.
func (p *Pipeline) collectInputs(opts model.RunOptions) ([]string, error) {
	set := signals.NewOrderedSet()
	set.Add(strings.TrimSpace(opts.URL))
	for _, u := range opts.URLs {
		set.Add(strings.TrimSpace(u))
	}
	if opts.DomainsFile != "" {
		lines, err := LoadTargetsFile(opts.DomainsFile)
		if err != nil {
			return nil, &kindError{kind: ErrConfiguration, cause: err}
		}
		set.AddAll(lines)
	}

	if set.Len() == 0 {
		if opts.HTMLFolder != "" {
			return nil, configError("Provide at least one domain via --url or --domains when using --html-folder")
		}
		return nil, configError("Provide at least one --url or --domains file")
	}
	if opts.HTMLFolder != "" && set.Len() > 1 {
		return nil, configError("--html-folder currently supports a single domain")
	}
	return set.Items(), nil
}

func (p *Pipeline) createSpreadsheet(ctx context.Context, domains []string, opts model.RunOptions, sheetName string) (*Spreadsheet, error) {
	if p.deps.Sheets == nil {
		return nil, configError("sheet sync is not configured")
	}
	spec := SpreadsheetSpec{
		Title:     SpreadsheetTitle(domains, opts, p.deps.Now()),
		SheetName: sheetName,
		ShareWith: signals.Unique(append(append([]string{}, p.settings.ShareWith...), opts.ShareWith...)),
		FolderID:  firstNonEmpty(opts.SheetFolderID, p.settings.FolderID),
	}
	created, err := p.deps.Sheets.CreateSpreadsheet(ctx, spec)
	if err != nil {
		if resilience.StatusCode(err) == http.StatusForbidden {
			return nil, syncError("Unable to create spreadsheet (permission denied). Enable the Google Drive API for this project or rerun with --reuse-sheet and a shared SHEET_ID.", err)
		}
		return nil, syncError("create spreadsheet", err)
	}
	return created, nil
}

func (p *Pipeline) loadExistingKeys(ctx context.Context, sheetID, tab string) (map[string]struct{}, error) {
	if err := p.deps.Sheets.EnsureHeader(ctx, sheetID, tab); err != nil {
		return nil, err
	}
	keys, err := p.deps.Sheets.FetchExistingKeys(ctx, sheetID, tab)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = map[string]struct{}{}
	}
	return keys, nil
}

// discoverTargets expands directory inputs into business targets, or turns
// each input domain into a target.
func (p *Pipeline) discoverTargets(
	ctx context.Context,
	crawler scrape.Crawler,
	domains []string,
	opts model.RunOptions,
	crawlOpts model.CrawlOptions,
	limit int,
	acc *metricsAccumulator,
	addFailure func(model.Failure),
) []model.Target {
	if !opts.Directory {
		targets := make([]model.Target, len(domains))
		for i, d := range domains {
			targets[i] = model.Target{URL: d}
		}
		return targets
	}

	maxBusinesses := firstPositive(opts.MaxBusinesses, p.settings.MaxBusinesses, DefaultMaxBusinesses)
	perDomain := make([][]model.Target, len(domains))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, domain := range domains {
		g.Go(func() error {
			startURL := signals.EnsureHTTP(domain)
			log := zap.L().With(zap.String("directory", startURL))

			docs, err := crawler.Crawl(ctx, startURL, crawlOpts)
			acc.addDirectoryPages(len(docs))
			if err != nil {
				log.Error("pipeline: directory crawl failed", zap.Error(err))
				addFailure(newFailure(fetchError("directory crawl failed", err), domain, startURL))
				return nil
			}
			if len(docs) == 0 {
				log.Warn("pipeline: no documents from directory")
				return nil
			}
			candidates := ExtractBusinessURLs(docs, startURL, maxBusinesses)
			if len(candidates) == 0 {
				log.Warn("pipeline: no external business urls discovered")
				return nil
			}
			targets := make([]model.Target, len(candidates))
			for j, c := range candidates {
				targets[j] = model.Target{URL: c.URL, SourceDirectoryURL: startURL}
			}
			perDomain[i] = targets
			return nil
		})
	}
	_ = g.Wait()

	var targets []model.Target
	for _, ts := range perDomain {
		targets = append(targets, ts...)
	}
	return targets
}

func (p *Pipeline) crawlOptions(opts model.RunOptions) model.CrawlOptions {
	include := opts.IncludePaths
	if len(include) == 0 {
		include = p.settings.IncludePaths
	}
	exclude := opts.ExcludePaths
	if len(exclude) == 0 {
		exclude = p.settings.ExcludePaths
	}
	return model.CrawlOptions{
		Depth:        firstPositive(opts.MaxDepth, p.settings.MaxDepth),
		PageLimit:    firstPositive(opts.MaxPages, p.settings.MaxPages),
		IncludePaths: include,
		ExcludePaths: exclude,
		PollInterval: firstPositive(opts.PollInterval, p.settings.PollInterval),
		Delay:        firstPositive(opts.Delay, p.settings.Delay),
	}
}

func (p *Pipeline) finalize(acc *metricsAccumulator, discovered int) model.RunMetrics {
	return acc.finalize(p.deps.Now(), discovered, p.deps.Cost)
}

// SpreadsheetTitle returns opts.Title or "YYYY-MM-DD_<slug>", where the
// slug comes from the label, the keyword or the first domain's host.
func SpreadsheetTitle(domains []string, opts model.RunOptions, now time.Time) string {
	if opts.Title != "" {
		return opts.Title
	}
	label := firstNonEmpty(opts.Label, opts.Keyword)
	if label == "" && len(domains) > 0 {
		first := signals.EnsureHTTP(domains[0])
		label = first
		if u, err := url.Parse(first); err == nil && u.Host != "" {
			label = u.Host
		}
	}
	return now.Format("2006-01-02") + "_" + Slugify(label)
}

var (
	slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)
	stripMarks     = runes.Remove(runes.In(unicode.Mn))
)

// Slugify lower-cases value, folds accents, and joins alphanumeric runs with
// "-". The result is at most 80 bytes; an empty result becomes "run".
func Slugify(value string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, stripMarks, norm.NFC), value)
	if err != nil {
		folded = value
	}
	s := slugSeparators.ReplaceAllString(strings.ToLower(folded), "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = s[:80]
	}
	if s == "" {
		return "run"
	}
	return s
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vs ...int) int {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}
