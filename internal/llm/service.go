// Package llm turns documents and aggregated leads into typed model answers:
// per-page extraction, ICP scoring, and a sales summary.
package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// ErrSchemaViolation is wrapped by every error caused by a model answer that
// does not match the expected JSON shape.
var ErrSchemaViolation = eris.New("llm: response violates schema")

// ExtractRequest asks for the lead signals on one page. Escalate selects the
// stronger escalation model.
type ExtractRequest struct {
	Document model.Document
	Domain   string
	ICP      string
	Model    string
	Escalate bool
}

// Response is a validated model answer with the usage it consumed.
type Response[T any] struct {
	JSON  T
	Usage *model.TokenUsage
	Model string
}

// Service is the model boundary used by the pipeline.
type Service interface {
	Extract(ctx context.Context, req ExtractRequest) (*Response[model.PageFields], error)
	Score(ctx context.Context, lead model.AggregatedLead, icp, modelID string) (*Response[model.ScoringResult], error)
	Summarize(ctx context.Context, lead model.AggregatedLead, modelID string) (*Response[model.SummaryResult], error)
}
