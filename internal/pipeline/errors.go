package pipeline

import (
	"errors"

	"github.com/rotisserie/eris"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// Sentinel errors for each failure kind. Errors returned by this package
// match exactly one of them under errors.Is.
var (
	ErrFetch         = eris.New("pipeline: fetch failure")
	ErrExtraction    = eris.New("pipeline: extraction failure")
	ErrConfiguration = eris.New("pipeline: configuration error")
	ErrSync          = eris.New("pipeline: sync failure")
)

// kindError carries a user-facing message, its failure kind and an optional
// cause.
type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause != nil && e.msg == "" {
		return e.cause.Error()
	}
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func configError(msg string) error { return &kindError{kind: ErrConfiguration, msg: msg} }

func fetchError(msg string, cause error) error {
	return &kindError{kind: ErrFetch, msg: msg, cause: cause}
}

func extractionError(msg string, cause error) error {
	return &kindError{kind: ErrExtraction, msg: msg, cause: cause}
}

func syncError(msg string, cause error) error {
	return &kindError{kind: ErrSync, msg: msg, cause: cause}
}

// PageError is an extraction failure pinned to one page URL.
type PageError struct {
	URL string
	Err error
}

func (e *PageError) Error() string {
	return "extraction failed for " + e.URL + ": " + e.Err.Error()
}

// Unwrap exposes both ErrExtraction and the underlying cause.
func (e *PageError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// Classify maps an error chain to its failure kind.
func Classify(err error) model.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return model.FailureConfiguration
	case errors.Is(err, ErrFetch):
		return model.FailureFetch
	case errors.Is(err, ErrExtraction):
		return model.FailureExtraction
	case errors.Is(err, ErrSync):
		return model.FailureSync
	default:
		return model.FailureUnknown
	}
}

// newFailure builds the failure record for err.
func newFailure(err error, domain, url string) model.Failure {
	var pe *PageError
	if url == "" && errors.As(err, &pe) {
		url = pe.URL
	}
	return model.Failure{
		Kind:    Classify(err),
		Message: err.Error(),
		Domain:  domain,
		URL:     url,
	}
}
