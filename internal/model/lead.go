package model

// ContactSignal is an email or phone reported by the extraction model.
type ContactSignal struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Context    *string `json:"context"`
}

// PageFields is the structured answer returned by the extraction model for
// one page. Nullable fields are pointers so that an explicit null survives
// decoding.
type PageFields struct {
	CompanyName        *string         `json:"company_name"`
	CompanyDescription *string         `json:"company_description"`
	Industry           *string         `json:"industry"`
	Headquarters       *string         `json:"headquarters"`
	EmployeeCount      *string         `json:"employee_count"`
	ContactURLs        []string        `json:"contact_urls"`
	Emails             []ContactSignal `json:"emails"`
	Phones             []ContactSignal `json:"phones"`
	LinkedInURLs       []string        `json:"linkedin_urls"`
	OtherSocial        []string        `json:"other_social"`
	Notes              *string         `json:"notes"`
	Confidence         float64         `json:"confidence"`
	MissingSignals     []string        `json:"missing_signals"`
}

// TokenUsage tracks token consumption for a model call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Add returns the element-wise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		TotalTokens:  u.TotalTokens + o.TotalTokens,
	}
}

// ModelUsage attributes token usage to the model that consumed it.
type ModelUsage struct {
	Model string     `json:"model"`
	Usage TokenUsage `json:"usage"`
}

// PageSignalSet is the extraction result for a single document.
type PageSignalSet struct {
	URL         string           `json:"url"`
	Fields      PageFields       `json:"fields"`
	RegexEmails []string         `json:"regex_emails"`
	RegexPhones []string         `json:"regex_phones"`
	LinkedIn    []string         `json:"linkedin"`
	OtherSocial []string         `json:"other_social"`
	TechHints   []string         `json:"tech_hints"`
	Metadata    DocumentMetadata `json:"metadata"`
	Usage       []ModelUsage     `json:"usage"`
	Escalated   bool             `json:"escalated"`
}

// LeadEmail is a deduplicated, confidence-ranked email on an aggregated lead.
type LeadEmail struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Context    *string `json:"context"`
}

// AggregatedLead is the merged view of every page extracted for one domain.
type AggregatedLead struct {
	Domain      string       `json:"domain"`
	Company     *string      `json:"company"`
	Description *string      `json:"description"`
	Industry    *string      `json:"industry"`
	Location    *string      `json:"location"`
	Size        *string      `json:"size"`
	ContactURLs []string     `json:"contact_urls"`
	Emails      []LeadEmail  `json:"emails"`
	Phones      []string     `json:"phones"`
	LinkedIn    []string     `json:"linkedin"`
	OtherSocial []string     `json:"other_social"`
	Notes       *string      `json:"notes"`
	Confidence  *float64     `json:"confidence"`
	Tech        []string     `json:"tech"`
	SourceURLs  []string     `json:"source_urls"`
	Usage       []ModelUsage `json:"usage"`
}

// PrimaryEmail returns the highest-ranked email or "".
func (l AggregatedLead) PrimaryEmail() string {
	if len(l.Emails) == 0 {
		return ""
	}
	return l.Emails[0].Value
}

// ScoringResult is the ICP fit assessment for a lead.
type ScoringResult struct {
	FitScore   float64  `json:"fit_score"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Blockers   []string `json:"blockers"`
}

// SummaryResult is the sales-ready summary of a lead.
type SummaryResult struct {
	Summary    string   `json:"summary"`
	KeySignals []string `json:"key_signals"`
}

// StringPtr returns a pointer to s, or nil if s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
