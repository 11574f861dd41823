package pipeline

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonPrintable  = regexp.MustCompile(`[^\x20-\x7E]`)
)

// CleanText prepares crawled text for summarization: NFKC normalization,
// whitespace runs collapsed to one space, everything outside printable
// ASCII removed, then trimmed.
//
// Whitespace is collapsed before non-ASCII characters are removed, so
// "a é b" becomes "a  b".
func CleanText(text string) string {
	text = norm.NFKC.String(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = nonPrintable.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
