package composer

import (
	"regexp"
	"strings"
)

var (
	blankLineRuns = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
	spaceRuns     = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean tightens generated text: two or more consecutive blank lines become
// one, runs of spaces or tabs become a single space, and the result is trimmed.
// Single line breaks are kept so Markdown structure survives.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankLineRuns.ReplaceAllString(s, "\n\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
