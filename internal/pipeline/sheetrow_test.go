package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

func TestLeadID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "227d31ba50e73483ff1c986eadafca38771cc9b5", LeadID("acme.test", "contact@acme.test"))
	assert.Equal(t, "2e53451a93121214ce6873804551891827662e88", LeadID("acme.com", ""))
	assert.NotEqual(t, LeadID("acme.test", "a@acme.test"), LeadID("acme.test", "b@acme.test"))
}

func TestBuildSheetRow(t *testing.T) {
	t.Parallel()

	conf := 0.8
	lead := model.AggregatedLead{
		Domain:      "acme.test",
		Company:     model.StringPtr("Acme"),
		Industry:    model.StringPtr("Software"),
		ContactURLs: []string{"https://acme.test/contact"},
		Emails: []model.LeadEmail{
			{Value: "contact@acme.test", Confidence: 0.9},
			{Value: "sales@acme.test", Confidence: 0.5},
		},
		Phones:     []string{"+15125550134", "+15125550199"},
		LinkedIn:   []string{"https://linkedin.com/company/acme", "https://linkedin.com/in/founder"},
		Tech:       []string{"WordPress", "HubSpot"},
		SourceURLs: []string{"https://acme.test", "https://acme.test/contact"},
		Notes:      model.StringPtr("page notes"),
		Confidence: &conf,
	}
	scoring := &model.ScoringResult{FitScore: 82, Confidence: 0.7}
	summary := &model.SummaryResult{Summary: "Acme builds widgets.", KeySignals: []string{"Hiring", ""}}
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	row := BuildSheetRow(lead, scoring, summary, now)

	assert.Equal(t, "2026-03-04T05:06:07Z", row.Timestamp)
	assert.Equal(t, "227d31ba50e73483ff1c986eadafca38771cc9b5", row.LeadID)
	assert.Equal(t, "Acme", row.Company)
	assert.Equal(t, "contact@acme.test, sales@acme.test", row.Emails)
	assert.Equal(t, "+15125550134, +15125550199", row.Phones)
	assert.Equal(t, "https://acme.test/contact", row.ContactURL)
	assert.Equal(t, "https://linkedin.com/company/acme", row.LinkedIn)
	assert.Equal(t, "WordPress, HubSpot", row.TechCMS)
	require.NotNil(t, row.FitScore)
	assert.Equal(t, 82.0, *row.FitScore)
	require.NotNil(t, row.Confidence)
	assert.Equal(t, 0.7, *row.Confidence)
	assert.Equal(t, "Acme builds widgets. | Hiring", row.NotesAI)
	assert.Equal(t, `["https://acme.test","https://acme.test/contact"]`, row.SourceURLs)
	assert.Equal(t, "ok", row.Status)
	assert.Empty(t, row.Error)
}

func TestBuildSheetRow_Fallbacks(t *testing.T) {
	t.Parallel()

	conf := 0.55
	lead := model.AggregatedLead{
		Domain:     "acme.test",
		Notes:      model.StringPtr("page notes"),
		Confidence: &conf,
		SourceURLs: []string{"https://acme.test/about"},
	}
	row := BuildSheetRow(lead, nil, &model.SummaryResult{}, time.Now())

	assert.Equal(t, "https://acme.test/about", row.ContactURL)
	assert.Equal(t, "page notes", row.NotesAI)
	assert.Nil(t, row.FitScore)
	require.NotNil(t, row.Confidence)
	assert.Equal(t, 0.55, *row.Confidence)

	bare := BuildSheetRow(model.AggregatedLead{Domain: "acme.test"}, nil, nil, time.Now())
	assert.Equal(t, "https://acme.test", bare.ContactURL)
	assert.Equal(t, "[]", bare.SourceURLs)
	assert.Nil(t, bare.Confidence)
}

func TestPrependSource(t *testing.T) {
	t.Parallel()

	row := model.SheetRow{SourceURLs: `["https://acme.test","https://dir.test/list"]`}
	prependSource(&row, "https://dir.test/list")
	assert.Equal(t, `["https://dir.test/list","https://acme.test"]`, row.SourceURLs)

	broken := model.SheetRow{SourceURLs: "not json"}
	prependSource(&broken, "https://dir.test")
	assert.Equal(t, `["https://dir.test"]`, broken.SourceURLs)

	untouched := model.SheetRow{SourceURLs: `["a"]`}
	prependSource(&untouched, "")
	assert.Equal(t, `["a"]`, untouched.SourceURLs)
}
