package pipeline

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/signals"
)

// DefaultMaxBusinesses caps directory fan-out when no limit is given.
const DefaultMaxBusinesses = 25

var socialDomains = map[string]bool{
	"facebook.com":  true,
	"instagram.com": true,
	"twitter.com":   true,
	"linkedin.com":  true,
	"youtube.com":   true,
	"tiktok.com":    true,
}

var redirectParams = []string{"url", "website", "redirect", "dest"}

// DiscoveredTarget is a business site linked from a directory page.
type DiscoveredTarget struct {
	URL            string `json:"url"`
	Domain         string `json:"domain"`
	SourceDocument string `json:"source_document"`
}

// ExtractBusinessURLs collects up to maxBusinesses external business sites
// linked from directory documents. Links back to the directory, social
// profiles and repeated domains are skipped.
func ExtractBusinessURLs(docs []model.Document, sourceURL string, maxBusinesses int) []DiscoveredTarget {
	if maxBusinesses <= 0 {
		maxBusinesses = DefaultMaxBusinesses
	}
	sourceDomain := signals.NormalizeDomain(sourceURL)
	seenDomains := signals.NewOrderedSet()
	seenURLs := signals.NewOrderedSet()
	results := make([]DiscoveredTarget, 0)

	for _, doc := range docs {
		base := doc.URL
		if base == "" {
			base = sourceURL
		}
		for _, href := range candidateLinks(doc) {
			if len(results) >= maxBusinesses {
				return results
			}
			abs := resolveLink(href, base)
			if abs == "" {
				continue
			}
			cleaned := unwrapRedirect(abs, sourceDomain)
			domain := signals.NormalizeDomain(cleaned)
			if domain == "" || domain == sourceDomain || socialDomains[domain] {
				continue
			}
			if seenDomains.Has(domain) || seenURLs.Has(cleaned) {
				continue
			}
			seenDomains.Add(domain)
			seenURLs.Add(cleaned)
			results = append(results, DiscoveredTarget{URL: cleaned, Domain: domain, SourceDocument: base})
		}
		if len(results) >= maxBusinesses {
			break
		}
	}
	return results
}

// candidateLinks returns the crawler links followed by every anchor href in
// the HTML, without duplicates.
func candidateLinks(doc model.Document) []string {
	set := signals.NewOrderedSet()
	set.AddAll(doc.Links)
	if strings.TrimSpace(doc.HTML) != "" {
		if parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML)); err == nil {
			parsed.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
				set.Add(s.AttrOr("href", ""))
			})
		}
	}
	return set.Items()
}

func resolveLink(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if b, err := url.Parse(base); err == nil {
		ref = b.ResolveReference(ref)
	}
	scheme := strings.ToLower(ref.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return ref.String()
}

// unwrapRedirect returns the target of a directory's outbound redirect link.
// Only links on the directory's own domain are unwrapped.
func unwrapRedirect(raw, sourceDomain string) string {
	if signals.NormalizeDomain(raw) != sourceDomain {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, name := range redirectParams {
		v := q.Get(name)
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return v
		}
		return raw
	}
	return raw
}
