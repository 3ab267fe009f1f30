package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want model.FailureKind
	}{
		{"nil", nil, ""},
		{"config", configError("missing key"), model.FailureConfiguration},
		{"fetch", fetchError("crawl failed", cause), model.FailureFetch},
		{"extraction", extractionError("scoring failed", cause), model.FailureExtraction},
		{"sync", syncError("append rows", cause), model.FailureSync},
		{"page", &PageError{URL: "https://acme.test", Err: cause}, model.FailureExtraction},
		{"unknown", cause, model.FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestKindError_Message(t *testing.T) {
	t.Parallel()

	cause := errors.New("503 from upstream")
	assert.Equal(t, "missing key", configError("missing key").Error())
	assert.Equal(t, "crawl failed: 503 from upstream", fetchError("crawl failed", cause).Error())
	assert.ErrorIs(t, fetchError("crawl failed", cause), cause)
	assert.Equal(t, "503 from upstream", (&kindError{kind: ErrSync, cause: cause}).Error())
}

func TestNewFailure_PageURL(t *testing.T) {
	t.Parallel()

	err := extractionError("all pages failed extraction", &PageError{URL: "https://acme.test/contact", Err: errors.New("bad json")})
	f := newFailure(err, "acme.test", "")
	assert.Equal(t, model.FailureExtraction, f.Kind)
	assert.Equal(t, "acme.test", f.Domain)
	assert.Equal(t, "https://acme.test/contact", f.URL)
	assert.Contains(t, f.Message, "bad json")
}
