package signals

import (
	"net/url"
	"strings"
)

// Two-label public suffixes that keep three labels in the registrable domain.
var twoPartTLDs = map[string]bool{
	"co.uk":  true,
	"com.au": true,
	"co.nz":  true,
	"com.br": true,
	"com.mx": true,
	"com.tr": true,
}

// NormalizeDomain lower-cases the host of raw (a URL or bare host) and
// collapses it to its registrable domain. Unparseable input is returned
// trimmed.
func NormalizeDomain(raw string) string {
	trimmed := strings.TrimSpace(raw)
	host := Hostname(trimmed)
	if host == "" {
		return trimmed
	}

	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	lastTwo := strings.Join(parts[len(parts)-2:], ".")
	if twoPartTLDs[lastTwo] {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return lastTwo
}

// Hostname returns the lower-cased host of raw, adding an https scheme when
// raw has none. It returns "" when no host can be parsed.
func Hostname(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(raw), "http") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// EnsureHTTP prefixes https:// when raw has no http(s) scheme.
func EnsureHTTP(raw string) string {
	if raw == "" {
		return raw
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "https://" + raw
}
