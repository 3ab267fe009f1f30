package signals

import (
	"regexp"
	"strings"
)

var (
	linkedInRe = regexp.MustCompile(`(?i)https?://([a-z]+\.)?linkedin\.com/[A-Za-z0-9_./-]+`)
	socialRe   = regexp.MustCompile(`(?i)https?://([a-z0-9-]+\.)?(facebook|instagram|twitter|x|youtube|tiktok)\.com/[A-Za-z0-9_./@-]+`)
)

// ExtractLinkedIn returns distinct LinkedIn URLs with query and fragment
// removed.
func ExtractLinkedIn(text string) []string {
	return matchLinks(linkedInRe, text)
}

// ExtractSocialLinks returns distinct non-LinkedIn social profile URLs.
func ExtractSocialLinks(text string) []string {
	return matchLinks(socialRe, text)
}

func matchLinks(re *regexp.Regexp, text string) []string {
	set := NewOrderedSet()
	for _, m := range re.FindAllString(text, -1) {
		set.Add(stripQuery(m))
	}
	return set.Items()
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
