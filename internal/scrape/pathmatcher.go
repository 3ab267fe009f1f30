package scrape

import (
	"net/url"
	"path"
	"strings"
)

// PathMatcher filters paths with glob-style include and exclude patterns.
// Uses path.Match plus a segmented match so "/blog/*" also matches
// multi-level paths like "/blog/deep/path".
type PathMatcher struct {
	include []string
	exclude []string
}

// NewPathMatcher creates a PathMatcher. Empty include patterns allow
// everything that is not excluded.
func NewPathMatcher(include, exclude []string) *PathMatcher {
	return &PathMatcher{include: lowerAll(include), exclude: lowerAll(exclude)}
}

// Allowed reports whether a URL or bare path passes both pattern lists.
func (m *PathMatcher) Allowed(raw string) bool {
	p, ok := urlPath(raw)
	if !ok {
		return false
	}
	p = strings.ToLower(p)
	for _, pattern := range m.exclude {
		if matchSegmented(pattern, p) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, pattern := range m.include {
		if matchSegmented(pattern, p) {
			return true
		}
	}
	return false
}

func urlPath(raw string) (string, bool) {
	if strings.HasPrefix(raw, "/") {
		return raw, true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Path == "" {
		return "/", true
	}
	return u.Path, true
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

// matchSegmented performs glob matching where a pattern like "/blog/*"
// matches both "/blog/post" and "/blog/deep/nested/path".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
