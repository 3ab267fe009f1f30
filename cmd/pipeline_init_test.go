package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/config"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/cost"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/llm"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/scrape"
)

func testConfig() *config.Config {
	return &config.Config{
		Store:     config.StoreConfig{Driver: "memory"},
		Firecrawl: config.FirecrawlConfig{Key: "fc-key", BaseURL: "https://firecrawl.example.test/v1"},
		Anthropic: config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", EscalationModel: "claude-sonnet-4-5-20250929", MaxTokens: 2048},
		Google:    config.GoogleConfig{SheetID: "sheet-1", ShareWith: "a@x.test, b@x.test", FolderID: "folder-1"},
		Pipeline: config.PipelineConfig{
			MaxPages:            80,
			MaxDepth:            2,
			ExtractPages:        12,
			PageConcurrency:     6,
			DomainConcurrency:   1,
			MaxBusinesses:       25,
			EscalationThreshold: 0.6,
			PhoneRegion:         "US",
			SheetName:           "Leads",
			ICP:                 "local trades",
		},
		Crawl: config.CrawlConfig{PollIntervalSecs: 3, DelaySecs: 2, ExcludePaths: []string{"/blog/*"}},
		LLM:   config.LLMConfig{Mock: true},
	}
}

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestBuildSettings(t *testing.T) {
	s := buildSettings(testConfig())

	assert.Equal(t, 80, s.MaxPages)
	assert.Equal(t, 12, s.ExtractPages)
	assert.Equal(t, 2, s.MaxDepth)
	assert.Equal(t, 6, s.PageConcurrency)
	assert.Equal(t, 25, s.MaxBusinesses)
	assert.InDelta(t, 0.6, s.EscalationThreshold, 1e-9)
	assert.Equal(t, "claude-haiku-4-5-20251001", s.Model)
	assert.Equal(t, "local trades", s.ICP)
	assert.Equal(t, "sheet-1", s.SheetID)
	assert.Equal(t, "folder-1", s.FolderID)
	assert.Equal(t, []string{"a@x.test", "b@x.test"}, s.ShareWith)
	assert.Equal(t, 3, s.PollInterval)
	assert.Equal(t, []string{"/blog/*"}, s.ExcludePaths)
}

func TestBuildRates(t *testing.T) {
	rates := buildRates(config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{
			"claude-custom": {Input: 2, Output: 8},
		},
		Firecrawl: config.FirecrawlPricing{PlanMonthly: 99},
	})

	assert.Equal(t, cost.ModelRate{Input: 2, Output: 8}, rates.Anthropic["claude-custom"])
	assert.Contains(t, rates.Anthropic, "claude-haiku-4-5-20251001")
	assert.InDelta(t, 99.0, rates.Firecrawl.PlanMonthly, 1e-9)
	assert.InDelta(t, cost.DefaultRates().Firecrawl.CreditsIncluded, rates.Firecrawl.CreditsIncluded, 1e-9)
}

func TestNewLLMService(t *testing.T) {
	c := testConfig()
	_, isMock := newLLMService(c).(*llm.MockService)
	assert.True(t, isMock)

	c.LLM.Mock = false
	c.Anthropic.Key = "sk-test"
	_, isClaude := newLLMService(c).(*llm.AnthropicService)
	assert.True(t, isClaude)
}

func TestNewSheetSync_NoCredentials(t *testing.T) {
	s, err := newSheetSync(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestNewCrawler(t *testing.T) {
	c := newCrawler(testConfig(), nil)
	_, ok := c.(*scrape.FirecrawlCrawler)
	assert.True(t, ok)
}

func TestInitPipeline_DryRunWithMockLLM(t *testing.T) {
	withConfig(t, testConfig())

	env, err := initPipeline(context.Background())
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)
	require.NotNil(t, env.Pipeline)

	_, err = env.Pipeline.Run(context.Background(), model.RunOptions{})
	require.Error(t, err, "a run without inputs is a configuration error")
}
