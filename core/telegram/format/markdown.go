package format

import (
	"regexp"
	"strings"
)

var mdV1Re = regexp.MustCompile("([_*\\[`])")

// EscapeMarkdown escapes Markdown (v1) special characters in user-provided text
// so it can be embedded into rendered screens without breaking formatting.
func EscapeMarkdown(text string) string {
	return mdV1Re.ReplaceAllString(text, `\$1`)
}

// Bold wraps text in Markdown bold markers.
func Bold(text string) string {
	return "*" + text + "*"
}

// Code wraps text in Markdown inline-code markers.
func Code(text string) string {
	return "`" + strings.ReplaceAll(text, "`", "'") + "`"
}
