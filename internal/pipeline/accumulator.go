package pipeline

import (
	"sync"
	"time"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/cost"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/metrics"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// metricsAccumulator collects run metrics from concurrent targets. Every
// update is additive, so the order of calls does not matter.
type metricsAccumulator struct {
	mu sync.Mutex
	m  model.RunMetrics
}

func newMetricsAccumulator(startedAt time.Time) *metricsAccumulator {
	return &metricsAccumulator{m: model.RunMetrics{
		StartedAt: startedAt,
		LLM:       model.LLMTotals{Models: map[string]model.TokenUsage{}},
	}}
}

func (a *metricsAccumulator) addDirectoryPages(n int) {
	a.mu.Lock()
	a.m.Firecrawl.DirectoryPages += n
	a.mu.Unlock()
	metrics.AddPages("directory", n)
}

func (a *metricsAccumulator) startTarget() {
	a.mu.Lock()
	a.m.Totals.Processed++
	a.mu.Unlock()
}

func (a *metricsAccumulator) finishTarget(res TargetResult) {
	a.mu.Lock()
	a.m.Firecrawl.TargetPages += res.DocumentsFetched
	if res.Success {
		a.m.Totals.Successes++
	} else {
		a.m.Totals.Failures++
	}
	a.mu.Unlock()

	metrics.AddPages("target", res.DocumentsFetched)
	if res.Success {
		metrics.ObserveTarget("success")
	} else {
		metrics.ObserveTarget(string(Classify(res.Err)))
	}
	if res.Success {
		for _, u := range res.Usage {
			a.addUsage(u)
		}
	}
}

// addUsage counts one model call. Entries without a model are ignored.
func (a *metricsAccumulator) addUsage(u model.ModelUsage) {
	if u.Model == "" {
		return
	}
	a.mu.Lock()
	a.m.LLM.Models[u.Model] = a.m.LLM.Models[u.Model].Add(u.Usage)
	a.m.LLM.TotalCalls++
	a.mu.Unlock()
	metrics.ObserveLLMCall(u.Model, u.Usage.InputTokens, u.Usage.OutputTokens)
}

// finalize stamps the end of the run and returns a copy of the metrics.
func (a *metricsAccumulator) finalize(finishedAt time.Time, discovered int, calc *cost.Calculator) model.RunMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.m.Totals.TargetsDiscovered = discovered
	a.m.Firecrawl.TotalPages = a.m.Firecrawl.DirectoryPages + a.m.Firecrawl.TargetPages
	a.m.FinishedAt = finishedAt
	a.m.DurationMs = finishedAt.Sub(a.m.StartedAt).Milliseconds()
	if calc != nil {
		a.m.LLM.EstimatedCostUSD = calc.Usage(a.m.LLM.Models)
		a.m.Firecrawl.EstimatedCostUSD = calc.FirecrawlPages(a.m.Firecrawl.TotalPages)
	}

	out := a.m
	out.LLM.Models = make(map[string]model.TokenUsage, len(a.m.LLM.Models))
	for k, v := range a.m.LLM.Models {
		out.LLM.Models[k] = v
	}
	return out
}
