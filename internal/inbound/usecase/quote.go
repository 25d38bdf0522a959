package usecase

import (
	"regexp"
	"strings"
)

// quoteSeparators mark where a reply stops being new content and starts
// quoting the previous mail. The list is ordered data so new client
// conventions or locales are additive; the earliest match in the text wins.
var quoteSeparators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\n\s*On\s+.+wrote\s*:`),
	regexp.MustCompile(`(?i)\n-{2,}\s*Original Message\s*-*`),
	regexp.MustCompile(`(?i)\n-{2,}\s*Forwarded message\s*-*`),
	regexp.MustCompile(`\n\s*<[^>]+>\s*于\s*.+写道\s*[：:]`),
	regexp.MustCompile(`<[^>]+>\s*于\s*.+写道\s*[：:]`),
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeBody lowercases and collapses whitespace for keyword matching.
func NormalizeBody(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(s), " "))
}

// NewContentBeforeQuote returns the normalized part of a reply written by the
// responder, cutting at the earliest quote separator. When no separator
// matches in a multi-line body the first line is taken, since a bare "STOP"
// above an indented quote must not be drowned out by the history below it.
func NewContentBeforeQuote(body string) string {
	cut := -1
	for _, sep := range quoteSeparators {
		if loc := sep.FindStringIndex(body); loc != nil {
			if cut == -1 || loc[0] < cut {
				cut = loc[0]
			}
		}
	}
	if cut >= 0 {
		return NormalizeBody(body[:cut])
	}
	trimmed := strings.TrimSpace(body)
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		return NormalizeBody(trimmed[:idx])
	}
	return NormalizeBody(trimmed)
}

// HasQuoteStructure reports whether the raw body contains a quote separator,
// a weak signal that a human is replying inside a thread.
func HasQuoteStructure(body string) bool {
	for _, sep := range quoteSeparators {
		if sep.MatchString(body) {
			return true
		}
	}
	return false
}
