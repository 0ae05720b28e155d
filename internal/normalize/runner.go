package normalize

import (
	"regexp"
	"strings"
)

var (
	countrySuffixRe = regexp.MustCompile(`\s*\([A-Za-z]{2,3}\)\s*$`)
	programPrefixRe = regexp.MustCompile(`^\d{1,2}\.\s+`)
	multiSpaceRe    = regexp.MustCompile(`\s{2,}`)
)

// RunnerName cleans a raw runner name into its display form. Empty results
// collapse to "Unknown" so downstream keys stay non-empty.
func RunnerName(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", " ")
	s = countrySuffixRe.ReplaceAllString(s, "")
	s = programPrefixRe.ReplaceAllString(s, "")

	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '-', c == '\'':
			b.WriteRune(c)
		}
	}
	s = multiSpaceRe.ReplaceAllString(strings.TrimSpace(b.String()), " ")
	if s == "" {
		return "Unknown"
	}
	return s
}
