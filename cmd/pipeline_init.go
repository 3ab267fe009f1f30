package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/config"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/cost"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/llm"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/pipeline"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/resilience"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/scrape"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/sheetsync"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/store"
	anthropicpkg "github.com/ShaunandDavid/lead-generator-firecrawl/pkg/anthropic"
	"github.com/ShaunandDavid/lead-generator-firecrawl/pkg/firecrawl"
	"github.com/ShaunandDavid/lead-generator-firecrawl/pkg/sheets"
)

// pipelineEnv holds the store and the pipeline needed by the run and serve
// commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initPipeline sets up the store and every collaborator and builds the
// Pipeline. Credentials are checked per run by the pipeline preflight.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	sheetSync, err := newSheetSync(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	deps := pipeline.Deps{
		Crawler: newCrawler(cfg, st),
		LLM:     newLLMService(cfg),
		Sheets:  sheetSync,
		Domains: st,
		Preflight: func(dryRun bool) error {
			return cfg.Validate("run", dryRun)
		},
		Cost: cost.NewCalculator(buildRates(cfg.Pricing)),
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(deps, buildSettings(cfg)),
	}, nil
}

func newCrawler(c *config.Config, visited scrape.VisitedRecorder) scrape.Crawler {
	client := firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:             "firecrawl",
		FailureThreshold: c.Crawl.CircuitFailureThreshold,
		ResetTimeout:     time.Duration(c.Crawl.CircuitResetSecs) * time.Second,
	})
	return scrape.NewFirecrawlCrawler(client,
		scrape.WithVisitedRecorder(visited),
		scrape.WithBreaker(breaker),
		scrape.WithCrawlTimeout(time.Duration(c.Crawl.PollTimeoutSecs)*time.Second),
	)
}

func newLLMService(c *config.Config) llm.Service {
	if c.LLM.Mock {
		zap.L().Info("llm: using mock service")
		return llm.NewMockService()
	}

	var opts []anthropicpkg.Option
	if c.Anthropic.BaseURL != "" {
		opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
	}
	client := anthropicpkg.NewClient(c.Anthropic.Key, opts...)
	return llm.NewAnthropicService(client, llm.AnthropicConfig{
		Model:             c.Anthropic.Model,
		EscalationModel:   c.Anthropic.EscalationModel,
		MaxTokens:         c.Anthropic.MaxTokens,
		RequestsPerSecond: c.LLM.RequestsPerSecond,
		Burst:             c.LLM.Burst,
		Timeout:           time.Duration(c.LLM.TimeoutSecs) * time.Second,
		Retry:             resilience.FromSettings(c.LLM.Retry.MaxAttempts, c.LLM.Retry.InitialBackoffMs, c.LLM.Retry.MaxBackoffMs),
	})
}

// newSheetSync returns nil when no service account is configured; dry runs
// work without one.
func newSheetSync(ctx context.Context, c *config.Config) (pipeline.SheetSync, error) {
	if c.Google.CredentialsPath == "" {
		zap.L().Debug("GOOGLE_APPLICATION_CREDENTIALS not set, sheet sync disabled")
		return nil, nil
	}
	client, err := sheets.NewClient(ctx, sheets.WithCredentialsFile(c.Google.CredentialsPath))
	if err != nil {
		return nil, eris.Wrap(err, "init sheets client")
	}
	return sheetsync.New(client,
		sheetsync.WithRetry(resilience.FromSettings(c.LLM.Retry.MaxAttempts, c.LLM.Retry.InitialBackoffMs, c.LLM.Retry.MaxBackoffMs)),
		sheetsync.WithShareNotify(c.Google.ShareNotify),
	), nil
}

func buildSettings(c *config.Config) pipeline.Settings {
	return pipeline.Settings{
		MaxPages:            c.Pipeline.MaxPages,
		ExtractPages:        c.Pipeline.ExtractPages,
		MaxDepth:            c.Pipeline.MaxDepth,
		PageConcurrency:     c.Pipeline.PageConcurrency,
		DomainConcurrency:   c.Pipeline.DomainConcurrency,
		MaxBusinesses:       c.Pipeline.MaxBusinesses,
		EscalationThreshold: c.Pipeline.EscalationThreshold,
		PhoneRegion:         c.Pipeline.PhoneRegion,
		Model:               c.Anthropic.Model,
		ICP:                 c.Pipeline.ICP,
		SheetName:           c.Pipeline.SheetName,
		SheetID:             c.Google.SheetID,
		FolderID:            c.Google.FolderID,
		ShareWith:           c.ShareList(),
		PollInterval:        c.Crawl.PollIntervalSecs,
		Delay:               c.Crawl.DelaySecs,
		IncludePaths:        c.Crawl.IncludePaths,
		ExcludePaths:        c.Crawl.ExcludePaths,
		DryRun:              c.DryRun,
	}
}

// buildRates converts configured pricing into calculator rates, falling
// back to the defaults for anything not configured.
func buildRates(p config.PricingConfig) cost.Rates {
	rates := cost.DefaultRates()
	for id, m := range p.Anthropic {
		rates.Anthropic[id] = cost.ModelRate{
			Input:         m.Input,
			Output:        m.Output,
			CacheWriteMul: m.CacheWriteMul,
			CacheReadMul:  m.CacheReadMul,
		}
	}
	if p.Firecrawl.PlanMonthly > 0 {
		rates.Firecrawl.PlanMonthly = p.Firecrawl.PlanMonthly
	}
	if p.Firecrawl.CreditsIncluded > 0 {
		rates.Firecrawl.CreditsIncluded = p.Firecrawl.CreditsIncluded
	}
	return rates
}
