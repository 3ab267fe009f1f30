package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku": {
				Input: 1.00, Output: 5.00,
				CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
			"sonnet": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
		},
		Firecrawl: FirecrawlRate{PlanMonthly: 19.0, CreditsIncluded: 3000},
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name       string
		model      string
		input      int64
		output     int64
		cacheWrite int64
		cacheRead  int64
		want       float64
	}{
		{
			name:  "haiku simple",
			model: "haiku", input: 1_000_000, output: 100_000,
			want: 1.00 + 0.50,
		},
		{
			name:  "sonnet with cache",
			model: "sonnet", input: 0, output: 0,
			cacheWrite: 1_000_000, cacheRead: 1_000_000,
			want: 6.00 + 0.30,
		},
		{
			name:  "unknown model",
			model: "mock-llm-sm", input: 1_000_000, output: 1_000_000,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Claude(tt.model, tt.input, tt.output, tt.cacheWrite, tt.cacheRead)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFirecrawlPages(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())
	assert.InDelta(t, 19.0/3000*30, calc.FirecrawlPages(30), 1e-9)

	empty := NewCalculator(Rates{})
	assert.Equal(t, 0.0, empty.FirecrawlPages(30))
}

func TestUsage(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())
	got := calc.Usage(map[string]model.TokenUsage{
		"haiku":       {InputTokens: 1_000_000, OutputTokens: 0},
		"sonnet":      {InputTokens: 0, OutputTokens: 1_000_000},
		"mock-llm-sm": {InputTokens: 28, OutputTokens: 20, TotalTokens: 48},
	})
	assert.InDelta(t, 1.00+15.00, got, 1e-9)
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()
	assert.Contains(t, rates.Anthropic, "claude-haiku-4-5-20251001")
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5-20250929")
	assert.Greater(t, rates.Firecrawl.CreditsIncluded, 0.0)
}
