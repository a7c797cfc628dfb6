package extract

import (
	"regexp"
	"strings"
)

// Unterminated script/style/comment blocks run to the end of the input so
// their content never leaks into the text.
var (
	scriptPattern     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?(?:</script\s*>|\z)`)
	stylePattern      = regexp.MustCompile(`(?is)<style\b[^>]*>.*?(?:</style\s*>|\z)`)
	commentPattern    = regexp.MustCompile(`(?s)<!--.*?(?:-->|\z)`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Zs}]+`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
	)
)

// Sanitize turns an HTML document into a single line of readable text.
// Script, style and comment removal must run before generic tag stripping.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	s := scriptPattern.ReplaceAllString(html, "")
	s = stylePattern.ReplaceAllString(s, "")
	s = commentPattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
