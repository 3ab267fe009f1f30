package model

import "strconv"

// SheetHeader is the fixed column order of the leads sheet.
var SheetHeader = []string{
	"timestamp",
	"lead_id",
	"domain",
	"company",
	"emails",
	"phones",
	"contact_url",
	"linkedin",
	"industry",
	"location",
	"size",
	"tech_cms",
	"fit_score",
	"confidence",
	"notes_ai",
	"source_urls",
	"status",
	"error",
}

// LeadIDColumn is the zero-based column index of lead_id in SheetHeader.
const LeadIDColumn = 1

// SheetRowStatusOK marks a successfully enriched row.
const SheetRowStatusOK = "ok"

// SheetRow is the flattened projection of a lead written to the sheet.
type SheetRow struct {
	Timestamp  string   `json:"timestamp"`
	LeadID     string   `json:"lead_id"`
	Domain     string   `json:"domain"`
	Company    string   `json:"company"`
	Emails     string   `json:"emails"`
	Phones     string   `json:"phones"`
	ContactURL string   `json:"contact_url"`
	LinkedIn   string   `json:"linkedin"`
	Industry   string   `json:"industry"`
	Location   string   `json:"location"`
	Size       string   `json:"size"`
	TechCMS    string   `json:"tech_cms"`
	FitScore   *float64 `json:"fit_score"`
	Confidence *float64 `json:"confidence"`
	NotesAI    string   `json:"notes_ai"`
	SourceURLs string   `json:"source_urls"`
	Status     string   `json:"status"`
	Error      string   `json:"error"`
}

// Values returns the row cells in SheetHeader order.
func (r SheetRow) Values() []any {
	return []any{
		r.Timestamp,
		r.LeadID,
		r.Domain,
		r.Company,
		r.Emails,
		r.Phones,
		r.ContactURL,
		r.LinkedIn,
		r.Industry,
		r.Location,
		r.Size,
		r.TechCMS,
		floatCell(r.FitScore),
		floatCell(r.Confidence),
		r.NotesAI,
		r.SourceURLs,
		r.Status,
		r.Error,
	}
}

// Strings returns the row cells in SheetHeader order as strings.
func (r SheetRow) Strings() []string {
	vals := r.Values()
	out := make([]string, len(vals))
	for i, v := range vals {
		switch t := v.(type) {
		case string:
			out[i] = t
		case float64:
			out[i] = strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return out
}

func floatCell(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}
