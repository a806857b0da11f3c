// Package slug derives URL-safe identifiers from post titles.
package slug

import (
	"regexp"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[^\w ]`)
	spaceRuns    = regexp.MustCompile(` +`)
)

// Derive computes the slug candidate for a title: lowercase, strip everything
// outside word characters and spaces, collapse space runs to single hyphens.
// It is pure; uniqueness against existing posts is the caller's problem.
func Derive(title string) string {
	s := strings.ToLower(title)
	s = invalidChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = spaceRuns.ReplaceAllString(s, "-")
	return s
}
