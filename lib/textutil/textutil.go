package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CollapseWhitespace trims a string and squashes any internal run of
// whitespace into a single space.
func CollapseWhitespace(s string) string {
	s = strings.Trim(s, " \n\t\r")
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// Lines splits a multi-line cell value into trimmed lines,
// dropping empty ones.
func Lines(s string) []string {
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.Trim(l, " \t\r")
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Line returns the i-th trimmed line of a cell value, or ""
// when the cell has fewer lines.
func Line(s string, i int) string {
	lines := Lines(s)
	if i < 0 || i >= len(lines) {
		return ""
	}
	return lines[i]
}
