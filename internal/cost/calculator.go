// Package cost estimates provider spend for a run from recorded usage.
package cost

import "github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Firecrawl FirecrawlRate        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// FirecrawlRate holds Firecrawl plan pricing. One crawled page costs one
// credit.
type FirecrawlRate struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of a single Claude call. Unknown models cost 0.
func (c *Calculator) Claude(modelID string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.rates.Anthropic[modelID]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// FirecrawlPages returns the prorated plan cost of crawling n pages.
func (c *Calculator) FirecrawlPages(n int) float64 {
	if c.rates.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	return float64(n) * c.rates.Firecrawl.PlanMonthly / c.rates.Firecrawl.CreditsIncluded
}

// Usage sums the model cost of per-model token totals, as recorded in run
// metrics.
func (c *Calculator) Usage(byModel map[string]model.TokenUsage) float64 {
	var total float64
	for id, u := range byModel {
		total += c.Claude(id, u.InputTokens, u.OutputTokens, 0, 0)
	}
	return total
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
		},
		Firecrawl: FirecrawlRate{PlanMonthly: 19.00, CreditsIncluded: 3000},
	}
}
