package signals

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used when no region is supplied.
const DefaultPhoneRegion = "US"

const minPhoneDigits = 8

var (
	phoneParenRe   = regexp.MustCompile(`[()]`)
	phoneNoiseRe   = regexp.MustCompile(`[^0-9+\s-]`)
	phoneNonDigits = regexp.MustCompile(`[^0-9+]`)
)

// ExtractPhones returns valid phone numbers found in text, formatted as
// E.164 and deduplicated by that canonical form. Tokens with fewer than
// eight digits are ignored.
func ExtractPhones(text, region string) []string {
	if region == "" {
		region = DefaultPhoneRegion
	}
	cleaned := phoneParenRe.ReplaceAllString(text, " ")
	cleaned = phoneNoiseRe.ReplaceAllString(cleaned, " ")

	set := NewOrderedSet()
	for _, token := range strings.Fields(cleaned) {
		normalized := phoneNonDigits.ReplaceAllString(token, "")
		if len(normalized) < minPhoneDigits {
			continue
		}
		num, err := phonenumbers.Parse(normalized, region)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			continue
		}
		set.Add(phonenumbers.Format(num, phonenumbers.E164))
	}
	return set.Items()
}
