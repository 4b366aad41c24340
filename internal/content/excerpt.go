package content

import (
	"regexp"
	"strings"
)

// ExcerptLength is the maximum number of characters in a derived excerpt, before the ellipsis.
const ExcerptLength = 150

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Excerpt strips markup from content and truncates it to ExcerptLength
// characters, backing off to the last word boundary.
func Excerpt(content string) string {
	plain := []rune(strings.TrimSpace(htmlTag.ReplaceAllString(content, "")))
	if len(plain) <= ExcerptLength {
		return string(plain)
	}

	truncated := plain[:ExcerptLength]
	for i := len(truncated) - 1; i > 0; i-- {
		if truncated[i] == ' ' {
			return string(truncated[:i]) + "..."
		}
	}
	return string(truncated) + "..."
}
