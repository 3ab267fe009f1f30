package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
)

// MockModel is the model name reported by MockService.
const MockModel = "mock-llm-sm"

var (
	mockUsage     = model.TokenUsage{InputTokens: 28, OutputTokens: 20, TotalTokens: 48}
	nameSeparator = regexp.MustCompile(`[-_]+`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// MockService returns fixed, domain-derived answers without calling a
// model. It backs dry runs and tests.
type MockService struct{}

// NewMockService creates a MockService.
func NewMockService() *MockService { return &MockService{} }

// Extract implements Service.
func (MockService) Extract(_ context.Context, req ExtractRequest) (*Response[model.PageFields], error) {
	host := signals.Hostname(req.Domain)
	if host == "" {
		host = "example.com"
	}
	company := HumanizeDomain(host)
	slug := strings.ToLower(spaceRun.ReplaceAllString(company, "-"))
	primary, main := "Primary", "Main"

	fields := model.PageFields{
		CompanyName:        model.StringPtr(company),
		CompanyDescription: model.StringPtr(company + " offers mocked services for test runs."),
		Industry:           model.StringPtr("Software"),
		Headquarters:       model.StringPtr("Austin, TX"),
		EmployeeCount:      model.StringPtr("51-200"),
		ContactURLs:        []string{fmt.Sprintf("https://%s/contact", host)},
		Emails:             []model.ContactSignal{{Value: "contact@" + host, Confidence: 0.9, Context: &primary}},
		Phones:             []model.ContactSignal{{Value: "+15551234567", Confidence: 0.7, Context: &main}},
		LinkedInURLs:       []string{"https://www.linkedin.com/company/" + slug},
		OtherSocial:        []string{},
		Notes:              model.StringPtr("Mocked extraction output"),
		Confidence:         0.9,
		MissingSignals:     []string{},
	}
	usage := mockUsage
	return &Response[model.PageFields]{JSON: fields, Usage: &usage, Model: MockModel}, nil
}

// Score implements Service.
func (MockService) Score(context.Context, model.AggregatedLead, string, string) (*Response[model.ScoringResult], error) {
	usage := mockUsage
	return &Response[model.ScoringResult]{
		JSON: model.ScoringResult{
			FitScore:   82,
			Confidence: 0.7,
			Rationale:  "Mock rationale based on fixture content.",
			Blockers:   []string{},
		},
		Usage: &usage,
		Model: MockModel,
	}, nil
}

// Summarize implements Service.
func (MockService) Summarize(_ context.Context, lead model.AggregatedLead, _ string) (*Response[model.SummaryResult], error) {
	company := model.Deref(lead.Company)
	if company == "" {
		company = "Mock Company"
	}
	usage := mockUsage
	return &Response[model.SummaryResult]{
		JSON: model.SummaryResult{
			Summary:    company + " is summarised by the mock model adapter.",
			KeySignals: []string{"Mock summary signal"},
		},
		Usage: &usage,
		Model: MockModel,
	}, nil
}

// HumanizeDomain turns the first label of host into a title-cased name, so
// "acme-widgets.com" becomes "Acme Widgets".
func HumanizeDomain(host string) string {
	if host == "" {
		return "Mock Company"
	}
	base := strings.Split(host, ".")[0]
	if base == "www" {
		if parts := strings.Split(host, "."); len(parts) > 1 {
			base = parts[1]
		}
	}
	words := strings.Fields(nameSeparator.ReplaceAllString(base, " "))
	if len(words) == 0 {
		return "Mock Company"
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}
