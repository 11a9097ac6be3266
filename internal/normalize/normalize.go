// Package normalize cleans raw feed and page text into plain, single-line strings.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended by Truncate when text was cut.
const Ellipsis = "..."

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Text decodes entities, removes tag-like regions and collapses whitespace.
// It repeats until nothing changes, so double-escaped markup such as
// "&amp;lt;b&amp;gt;" is fully stripped and Text(Text(s)) == Text(s).
func Text(s string) string {
	for {
		next := once(s)
		if next == s {
			return next
		}
		s = next
	}
}

func once(s string) string {
	s = html.UnescapeString(s)
	s = tagPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes. When s is longer, the result ends
// with ellipsis and is exactly max runes long.
func Truncate(s string, max int, ellipsis string) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	keep := max - utf8.RuneCountInString(ellipsis)
	if keep <= 0 {
		return string(runes[:max])
	}
	return string(runes[:keep]) + ellipsis
}

// Prefix returns the first max runes of s.
func Prefix(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
