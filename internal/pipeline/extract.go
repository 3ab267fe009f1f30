package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/llm"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/metrics"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
)

// DefaultEscalationThreshold is the primary-answer confidence below which a
// page is re-extracted with the escalation model.
const DefaultEscalationThreshold = 0.6

var errEmptyAnswer = eris.New("llm returned no answer")

type extractionState int

const (
	stateAttempted extractionState = iota
	stateEscalate
	stateAccepted
	stateFailed
)

func (s extractionState) String() string {
	switch s {
	case stateAttempted:
		return "attempted"
	case stateEscalate:
		return "escalate"
	case stateAccepted:
		return "accepted"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// nextExtractionState advances the escalation machine after a model call.
// A primary answer is accepted only when it names the company with
// confidence at or above threshold. An escalated answer is always accepted.
func nextExtractionState(state extractionState, answer *model.PageFields, err error, threshold float64) extractionState {
	switch state {
	case stateAttempted:
		if err != nil || answer == nil {
			return stateEscalate
		}
		if strings.TrimSpace(model.Deref(answer.CompanyName)) == "" || answer.Confidence < threshold {
			return stateEscalate
		}
		return stateAccepted
	case stateEscalate:
		if err != nil || answer == nil {
			return stateFailed
		}
		return stateAccepted
	default:
		return state
	}
}

// PageExtractor turns one document into a PageSignalSet using the regex
// extractors and the model, escalating weak answers once.
type PageExtractor struct {
	llm         llm.Service
	threshold   float64
	phoneRegion string
}

// NewPageExtractor creates a PageExtractor. A non-positive threshold
// selects DefaultEscalationThreshold.
func NewPageExtractor(svc llm.Service, threshold float64, phoneRegion string) *PageExtractor {
	if threshold <= 0 {
		threshold = DefaultEscalationThreshold
	}
	if phoneRegion == "" {
		phoneRegion = signals.DefaultPhoneRegion
	}
	return &PageExtractor{llm: svc, threshold: threshold, phoneRegion: phoneRegion}
}

// ExtractPage extracts the signals of doc. It returns a *PageError when both
// the primary and the escalated call fail.
func (e *PageExtractor) ExtractPage(ctx context.Context, doc model.Document, domain, icp, modelID string) (*model.PageSignalSet, error) {
	log := zap.L().With(zap.String("domain", domain), zap.String("url", doc.URL))

	text := doc.Markdown + "\n" + doc.HTML
	set := &model.PageSignalSet{
		URL:         doc.URL,
		RegexEmails: signals.ExtractEmails(text),
		RegexPhones: signals.ExtractPhones(text, e.phoneRegion),
		LinkedIn:    signals.ExtractLinkedIn(text + " " + doc.URL),
		OtherSocial: signals.ExtractSocialLinks(text),
		TechHints:   signals.DetectTech(doc.HTML, doc.Markdown),
		Metadata:    doc.Metadata,
		Usage:       []model.ModelUsage{},
	}

	req := llm.ExtractRequest{Document: doc, Domain: domain, ICP: icp, Model: modelID}
	state := stateAttempted
	var lastErr error
	for state == stateAttempted || state == stateEscalate {
		req.Escalate = state == stateEscalate
		resp, err := e.llm.Extract(ctx, req)

		var answer *model.PageFields
		if err == nil && resp != nil {
			answer = &resp.JSON
			if resp.Usage != nil {
				set.Usage = append(set.Usage, model.ModelUsage{Model: resp.Model, Usage: *resp.Usage})
			}
		}
		lastErr = err

		next := nextExtractionState(state, answer, err, e.threshold)
		switch next {
		case stateAccepted:
			set.Fields = *answer
			set.Escalated = req.Escalate
		case stateEscalate:
			metrics.ObserveEscalation()
			if err != nil {
				log.Debug("pipeline: escalating after primary error", zap.Error(err))
			} else if answer != nil {
				log.Debug("pipeline: escalating weak answer", zap.Float64("confidence", answer.Confidence))
			}
		}
		state = next
	}

	if state == stateFailed {
		if lastErr == nil {
			lastErr = errEmptyAnswer
		}
		log.Warn("pipeline: page extraction failed", zap.Error(lastErr))
		return nil, &PageError{URL: doc.URL, Err: lastErr}
	}
	return set, nil
}
