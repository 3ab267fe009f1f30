package signals

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type techMarker struct {
	needle string
	label  string
}

var htmlMarkers = []techMarker{
	{"wp-content", "WordPress"},
	{"shopify", "Shopify"},
	{"wixstatic", "Wix"},
	{"squarespace", "Squarespace"},
	{"hubspot", "HubSpot"},
}

var scriptMarkers = []techMarker{
	{"salesforce", "Salesforce/Pardot"},
	{"pardot", "Salesforce/Pardot"},
	{"marketo", "Marketo"},
	{"hubspot", "HubSpot"},
}

var markdownMarkers = []techMarker{
	{"powered by shopify", "Shopify"},
	{"powered by wordpress", "WordPress"},
}

// DetectTech returns technology labels fingerprinted from a page's HTML and
// markdown. Labels appear in detection order.
func DetectTech(html, markdown string) []string {
	set := NewOrderedSet()

	lowerHTML := strings.ToLower(html)
	for _, m := range htmlMarkers {
		if strings.Contains(lowerHTML, m.needle) {
			set.Add(m.label)
		}
	}

	if strings.TrimSpace(html) != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			if gen, ok := doc.Find(`meta[name="generator"]`).First().Attr("content"); ok {
				set.Add(strings.TrimSpace(gen))
			}
			doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
				src := strings.ToLower(s.AttrOr("src", ""))
				for _, m := range scriptMarkers {
					if strings.Contains(src, m.needle) {
						set.Add(m.label)
					}
				}
			})
		}
	}

	lowerMD := strings.ToLower(markdown)
	for _, m := range markdownMarkers {
		if strings.Contains(lowerMD, m.needle) {
			set.Add(m.label)
		}
	}

	return set.Items()
}
