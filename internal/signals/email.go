package signals

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)

// Bracketed obfuscation rewrites applied before the spaced forms.
var deobfuscations = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\s*[\[(]\s*at\s*[\])]\s*`), "@"},
	{regexp.MustCompile(`(?i)\s*[\[(]\s*dot\s*[\])]\s*`), "."},
}

var (
	spacedAtRe  = regexp.MustCompile(`(?i)(\S)\s+at\s+(\S)`)
	spacedDotRe = regexp.MustCompile(`(?i)(\S)\s+dot\s+(\S)`)
	bracketRe   = regexp.MustCompile(`[\[\](){}<>]`)
)

// Deobfuscate normalizes common email obfuscations such as "name [at] host
// [dot] com" or "name at mail dot host dot com".
func Deobfuscate(text string) string {
	out := text
	for _, d := range deobfuscations {
		out = d.re.ReplaceAllString(out, d.repl)
	}
	out = replaceUntilStable(spacedAtRe, out, "$1@$2")
	out = replaceUntilStable(spacedDotRe, out, "$1.$2")
	return bracketRe.ReplaceAllString(out, "")
}

// Adjacent matches share a boundary character, so one pass can leave
// "a dot b dot c" half rewritten.
func replaceUntilStable(re *regexp.Regexp, text, repl string) string {
	for {
		next := re.ReplaceAllString(text, repl)
		if next == text {
			return next
		}
		text = next
	}
}

// ExtractEmails returns the distinct lower-cased email addresses in text,
// in order of first appearance.
func ExtractEmails(text string) []string {
	if text == "" {
		return []string{}
	}
	matches := emailRe.FindAllString(Deobfuscate(text), -1)
	set := NewOrderedSet()
	for _, m := range matches {
		set.Add(strings.ToLower(strings.TrimSpace(m)))
	}
	return set.Items()
}
