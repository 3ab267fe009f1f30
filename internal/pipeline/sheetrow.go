package pipeline

import (
	"crypto/sha1" //nolint:gosec // lead ids are content keys, not secrets
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
)

// LeadID returns the stable dedup key for a lead: hex(sha1(domain|email)).
func LeadID(domain, primaryEmail string) string {
	sum := sha1.Sum([]byte(domain + "|" + primaryEmail)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// BuildSheetRow flattens a lead and its scoring and summary into a sheet row
// stamped with now.
func BuildSheetRow(lead model.AggregatedLead, scoring *model.ScoringResult, summary *model.SummaryResult, now time.Time) model.SheetRow {
	var noteParts []string
	if summary != nil {
		if s := strings.TrimSpace(summary.Summary); s != "" {
			noteParts = append(noteParts, s)
		}
		for _, k := range summary.KeySignals {
			if k = strings.TrimSpace(k); k != "" {
				noteParts = append(noteParts, k)
			}
		}
	}
	notes := strings.Join(noteParts, " | ")
	if notes == "" {
		notes = model.Deref(lead.Notes)
	}

	contactURL := "https://" + lead.Domain
	switch {
	case len(lead.ContactURLs) > 0:
		contactURL = lead.ContactURLs[0]
	case len(lead.SourceURLs) > 0:
		contactURL = lead.SourceURLs[0]
	}

	emails := make([]string, len(lead.Emails))
	for i, e := range lead.Emails {
		emails[i] = e.Value
	}

	var linkedIn string
	if len(lead.LinkedIn) > 0 {
		linkedIn = lead.LinkedIn[0]
	}

	var fit, conf *float64
	if scoring != nil {
		f, c := scoring.FitScore, scoring.Confidence
		fit, conf = &f, &c
	} else if lead.Confidence != nil {
		c := *lead.Confidence
		conf = &c
	}

	return model.SheetRow{
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
		LeadID:     LeadID(lead.Domain, lead.PrimaryEmail()),
		Domain:     lead.Domain,
		Company:    model.Deref(lead.Company),
		Emails:     strings.Join(emails, ", "),
		Phones:     strings.Join(lead.Phones, ", "),
		ContactURL: contactURL,
		LinkedIn:   linkedIn,
		Industry:   model.Deref(lead.Industry),
		Location:   model.Deref(lead.Location),
		Size:       model.Deref(lead.Size),
		TechCMS:    strings.Join(lead.Tech, ", "),
		FitScore:   fit,
		Confidence: conf,
		NotesAI:    notes,
		SourceURLs: encodeSources(lead.SourceURLs),
		Status:     model.SheetRowStatusOK,
	}
}

// prependSource puts source in front of the row's source_urls list,
// dropping duplicates. Undecodable lists are replaced by [source].
func prependSource(row *model.SheetRow, source string) {
	if source == "" {
		return
	}
	var list []string
	if row.SourceURLs != "" {
		if err := json.Unmarshal([]byte(row.SourceURLs), &list); err != nil {
			list = nil
		}
	}
	row.SourceURLs = encodeSources(signals.Unique(append([]string{source}, list...)))
}

func encodeSources(urls []string) string {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "[]"
	}
	return string(b)
}
