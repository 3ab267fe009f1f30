package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
)

// regexEmailConfidence is the confidence given to an email found only by the
// regex extractor.
const regexEmailConfidence = 0.5

// scalarField tracks the current value of one scalar lead attribute and the
// page confidence it came from.
type scalarField struct {
	value      *string
	confidence float64
}

// offer replaces the current value when incoming is non-empty and at least
// as confident. An empty current value is always replaced.
func (f *scalarField) offer(incoming *string, confidence float64) {
	if incoming == nil || strings.TrimSpace(*incoming) == "" {
		return
	}
	if f.value == nil || confidence >= f.confidence {
		v := strings.TrimSpace(*incoming)
		f.value = &v
		f.confidence = confidence
	}
}

type emailEntry struct {
	confidence float64
	contexts   *signals.OrderedSet
}

// emailBook merges emails by lower-cased value in first-seen order.
type emailBook struct {
	order   []string
	entries map[string]*emailEntry
}

func newEmailBook() *emailBook {
	return &emailBook{entries: make(map[string]*emailEntry)}
}

func (b *emailBook) add(value string, confidence float64, context *string) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return
	}
	e, ok := b.entries[key]
	if !ok {
		e = &emailEntry{confidence: confidence, contexts: signals.NewOrderedSet()}
		b.entries[key] = e
		b.order = append(b.order, key)
	} else if confidence > e.confidence {
		e.confidence = confidence
	}
	if context != nil {
		e.contexts.Add(strings.TrimSpace(*context))
	}
}

func (b *emailBook) list() []model.LeadEmail {
	out := make([]model.LeadEmail, 0, len(b.order))
	for _, key := range b.order {
		e := b.entries[key]
		var ctx *string
		if e.contexts.Len() > 0 {
			ctx = model.StringPtr(strings.Join(e.contexts.Items(), "; "))
		}
		out = append(out, model.LeadEmail{
			Value:      key,
			Confidence: round2(e.confidence),
			Context:    ctx,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Aggregate merges the per-page signals of one domain into a single lead.
// The result depends only on the order and content of pages.
func Aggregate(domain string, pages []model.PageSignalSet) model.AggregatedLead {
	var company, description, industry, location, size scalarField
	emails := newEmailBook()
	phones := signals.NewOrderedSet()
	contactURLs := signals.NewOrderedSet()
	linkedIn := signals.NewOrderedSet()
	otherSocial := signals.NewOrderedSet()
	tech := signals.NewOrderedSet()
	sources := signals.NewOrderedSet()
	notes := signals.NewOrderedSet()
	usage := []model.ModelUsage{}

	var confSum float64
	var confN int

	for _, page := range pages {
		f := page.Fields
		conf := f.Confidence

		company.offer(f.CompanyName, conf)
		description.offer(f.CompanyDescription, conf)
		industry.offer(f.Industry, conf)
		location.offer(f.Headquarters, conf)
		size.offer(f.EmployeeCount, conf)

		for _, em := range f.Emails {
			c := em.Confidence
			if c <= 0 {
				c = conf
			}
			emails.add(em.Value, c, em.Context)
		}
		for _, em := range page.RegexEmails {
			emails.add(em, regexEmailConfidence, nil)
		}

		phones.AddAll(page.RegexPhones)
		contactURLs.AddAll(trimAll(f.ContactURLs))
		linkedIn.AddAll(trimAll(f.LinkedInURLs))
		linkedIn.AddAll(page.LinkedIn)
		otherSocial.AddAll(trimAll(f.OtherSocial))
		otherSocial.AddAll(page.OtherSocial)
		tech.AddAll(page.TechHints)
		sources.Add(page.URL)
		if f.Notes != nil {
			notes.Add(strings.TrimSpace(*f.Notes))
		}
		usage = append(usage, page.Usage...)

		if conf > 0 {
			confSum += conf
			confN++
		}
	}

	lead := model.AggregatedLead{
		Domain:      domain,
		Company:     company.value,
		Description: description.value,
		Industry:    industry.value,
		Location:    location.value,
		Size:        size.value,
		ContactURLs: contactURLs.Items(),
		Emails:      emails.list(),
		Phones:      phones.Items(),
		LinkedIn:    linkedIn.Items(),
		OtherSocial: otherSocial.Items(),
		Tech:        tech.Items(),
		SourceURLs:  sources.Items(),
		Usage:       usage,
	}
	if notes.Len() > 0 {
		lead.Notes = model.StringPtr(strings.Join(notes.Items(), " | "))
	}
	if confN > 0 {
		mean := confSum / float64(confN)
		lead.Confidence = &mean
	}
	return lead
}

func trimAll(vs []string) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
