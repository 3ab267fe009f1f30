package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// DefaultMaxPages is the page budget used when Prioritize gets a
// non-positive limit.
const DefaultMaxPages = 12

type keywordWeight struct {
	keyword string
	weight  int
}

var urlKeywords = []keywordWeight{
	{"contact", 6},
	{"about", 4},
	{"team", 4},
	{"leadership", 4},
	{"pricing", 3},
	{"services", 3},
	{"solutions", 3},
	{"careers", 2},
	{"join", 2},
	{"jobs", 2},
	{"hire", 2},
	{"press", 1},
	{"privacy", 1},
	{"terms", 1},
}

type contentPattern struct {
	re     *regexp.Regexp
	weight int
}

var contentPatterns = []contentPattern{
	{regexp.MustCompile(`(?i)mailto:`), 6},
	{regexp.MustCompile(`(?i)phone|call us|reach us|contact us`), 3},
	{regexp.MustCompile(`@`), 2},
	{regexp.MustCompile(`(?i)linkedin\.com/`), 3},
	{regexp.MustCompile(`(?i)address|hq|headquarters|located in`), 2},
}

// ScoreDocument rates how likely a page is to carry contact signals.
func ScoreDocument(doc model.Document) int {
	score := 0
	lowerURL := strings.ToLower(doc.URL)
	for _, kw := range urlKeywords {
		if strings.Contains(lowerURL, kw.keyword) {
			score += kw.weight
		}
	}

	for _, p := range contentPatterns {
		if p.re.MatchString(doc.Markdown) {
			score += p.weight
		}
	}

	if doc.Metadata.Title != "" {
		score++
	}
	if doc.Metadata.Description != "" {
		score++
	}
	if len(doc.Markdown) > 2000 {
		score += 2
	}
	if len(doc.Links) > 10 {
		score++
	}
	return score
}

// Prioritize returns at most maxPages documents ordered by descending score.
// Equal scores keep their crawl order.
func Prioritize(docs []model.Document, maxPages int) []model.Document {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	type scored struct {
		doc   model.Document
		score int
	}
	ranked := make([]scored, len(docs))
	for i, d := range docs {
		ranked[i] = scored{doc: d, score: ScoreDocument(d)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	n := min(len(ranked), maxPages)
	out := make([]model.Document, n)
	for i := range n {
		out[i] = ranked[i].doc
	}
	return out
}
