package queue

import (
	"time"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// BuildStats aggregates run counts, target totals, crawl pages and model
// usage across runs.
func BuildStats(runs []model.Run) model.RunStats {
	stats := model.RunStats{
		LLM: model.LLMTotals{Models: map[string]model.TokenUsage{}},
	}
	stats.Runs.Total = len(runs)

	var last time.Time
	observe := func(t time.Time) {
		if !t.IsZero() && t.After(last) {
			last = t
		}
	}

	for _, run := range runs {
		switch run.Status {
		case model.RunStatusQueued:
			stats.Runs.Queued++
		case model.RunStatusRunning:
			stats.Runs.Running++
		case model.RunStatusCompleted:
			stats.Runs.Completed++
		case model.RunStatusFailed:
			stats.Runs.Failed++
		}

		if run.Result == nil {
			if run.FinishedAt != nil {
				observe(*run.FinishedAt)
			}
			continue
		}

		m := run.Result.Metrics
		stats.Totals.Appended += run.Result.Appended
		stats.Totals.TargetsDiscovered += m.Totals.TargetsDiscovered
		stats.Totals.TargetsProcessed += m.Totals.Processed
		stats.Totals.Successes += m.Totals.Successes
		stats.Totals.Failures += m.Totals.Failures

		stats.Firecrawl.DirectoryPages += m.Firecrawl.DirectoryPages
		stats.Firecrawl.TargetPages += m.Firecrawl.TargetPages
		stats.Firecrawl.EstimatedCostUSD += m.Firecrawl.EstimatedCostUSD

		stats.LLM.TotalCalls += m.LLM.TotalCalls
		stats.LLM.EstimatedCostUSD += m.LLM.EstimatedCostUSD
		for name, usage := range m.LLM.Models {
			stats.LLM.Models[name] = stats.LLM.Models[name].Add(usage)
		}

		switch {
		case !m.FinishedAt.IsZero():
			observe(m.FinishedAt)
		case run.FinishedAt != nil:
			observe(*run.FinishedAt)
		}
	}

	stats.Firecrawl.TotalPages = stats.Firecrawl.DirectoryPages + stats.Firecrawl.TargetPages
	if !last.IsZero() {
		stats.LastFinishedAt = &last
	}
	return stats
}
