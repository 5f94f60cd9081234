// Package textutil provides text normalization helpers for scraped report
// fragments.
package textutil

import (
	"regexp"
	"strings"
)

var (
	bracketRe    = regexp.MustCompile(`\[.*?\]`)
	tagRe        = regexp.MustCompile(`<.*?>+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText strips bracketed annotations and tag-like fragments left over
// from markup, replaces newlines and tabs with spaces, collapses whitespace
// runs, and trims the ends. Pure and deterministic.
func CleanText(text string) string {
	text = bracketRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\t", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
