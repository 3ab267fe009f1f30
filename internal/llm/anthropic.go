package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/resilience"
	"github.com/ShaunandDavid/lead-generator-firecrawl/pkg/anthropic"
)

const (
	extractionMaxTokens = 1500
	summaryMaxTokens    = 600
)

// AnthropicConfig configures the Claude-backed Service.
type AnthropicConfig struct {
	Model           string
	EscalationModel string
	MaxTokens       int64
	// RequestsPerSecond of zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// Timeout bounds each call. Zero means no timeout.
	Timeout time.Duration
	Retry   resilience.RetryConfig
}

// AnthropicService implements Service with the Messages API.
type AnthropicService struct {
	client  anthropic.Client
	cfg     AnthropicConfig
	limiter *rate.Limiter
}

// NewAnthropicService creates an AnthropicService.
func NewAnthropicService(client anthropic.Client, cfg AnthropicConfig) *AnthropicService {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.EscalationModel == "" {
		cfg.EscalationModel = cfg.Model
	}
	s := &AnthropicService{client: client, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s
}

// Extract implements Service.
func (s *AnthropicService) Extract(ctx context.Context, req ExtractRequest) (*Response[model.PageFields], error) {
	modelID := s.pick(req.Model)
	if req.Escalate {
		modelID = s.cfg.EscalationModel
	}
	text, usage, used, err := s.call(ctx, "lead_extraction", modelID, extractionMaxTokens,
		extractionSystemPrompt(req.ICP),
		extractionUserPrompt(req.Domain, req.Document.URL, req.Document.Markdown, req.Document.HTML),
	)
	if err != nil {
		return nil, err
	}
	fields, err := decodeAnswer[model.PageFields]("lead_extraction", text, extractionKeys)
	if err != nil {
		return nil, err
	}
	if !inUnitRange(fields.Confidence) {
		return nil, eris.Wrapf(ErrSchemaViolation, "lead_extraction: confidence %v out of range", fields.Confidence)
	}
	return &Response[model.PageFields]{JSON: fields, Usage: usage, Model: used}, nil
}

// Score implements Service.
func (s *AnthropicService) Score(ctx context.Context, lead model.AggregatedLead, icp, modelID string) (*Response[model.ScoringResult], error) {
	facts, err := json.MarshalIndent(lead, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal lead")
	}
	text, usage, used, err := s.call(ctx, "lead_scoring", s.pick(modelID), s.cfg.MaxTokens,
		scoringSystem, scoringUserPrompt(icp, string(facts)))
	if err != nil {
		return nil, err
	}
	res, err := decodeAnswer[model.ScoringResult]("lead_scoring", text, scoringKeys)
	if err != nil {
		return nil, err
	}
	if res.FitScore < 0 || res.FitScore > 100 || !inUnitRange(res.Confidence) {
		return nil, eris.Wrapf(ErrSchemaViolation, "lead_scoring: fit_score %v confidence %v out of range", res.FitScore, res.Confidence)
	}
	return &Response[model.ScoringResult]{JSON: res, Usage: usage, Model: used}, nil
}

// Summarize implements Service.
func (s *AnthropicService) Summarize(ctx context.Context, lead model.AggregatedLead, modelID string) (*Response[model.SummaryResult], error) {
	facts, err := json.MarshalIndent(lead, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal lead")
	}
	text, usage, used, err := s.call(ctx, "lead_summary", s.pick(modelID), summaryMaxTokens, summarySystem, string(facts))
	if err != nil {
		return nil, err
	}
	res, err := decodeAnswer[model.SummaryResult]("lead_summary", text, summaryKeys)
	if err != nil {
		return nil, err
	}
	return &Response[model.SummaryResult]{JSON: res, Usage: usage, Model: used}, nil
}

func (s *AnthropicService) pick(modelID string) string {
	if modelID != "" {
		return modelID
	}
	return s.cfg.Model
}

// call sends one system+user exchange and returns the answer text, its
// usage, and the model that served it.
func (s *AnthropicService) call(ctx context.Context, name, modelID string, maxTokens int64, system, user string) (string, *model.TokenUsage, string, error) {
	if maxTokens <= 0 || (s.cfg.MaxTokens > 0 && maxTokens > s.cfg.MaxTokens) {
		maxTokens = s.cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = extractionMaxTokens
	}
	temperature := 0.0
	req := anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(system),
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temperature,
	}

	retry := s.cfg.Retry
	retry.OnRetry = resilience.RetryLogger("anthropic", name)
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "llm: rate limiter")
			}
		}
		callCtx := ctx
		if s.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
		}
		resp, err := s.client.CreateMessage(callCtx, req)
		return resp, markTransient(err)
	})
	if err != nil {
		return "", nil, "", eris.Wrapf(err, "llm: %s with %s", name, modelID)
	}

	usage := &model.TokenUsage{
		InputTokens:  resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	used := resp.Model
	if used == "" {
		used = modelID
	}
	zap.L().Debug("llm: call complete",
		zap.String("call", name),
		zap.String("model", used),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.String("stop_reason", resp.StopReason),
	)
	return resp.Text(), usage, used, nil
}

func markTransient(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.WrapStatus(err, apiErr.StatusCode)
	}
	return err
}
