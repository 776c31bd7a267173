package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Posts are plain text; every tag is stripped.
var postPolicy = bluemonday.StrictPolicy()

// SanitizeContent strips markup from post content. Entities escaped by the
// policy are decoded again so stored text matches what the author typed.
func SanitizeContent(input string) string {
	return strings.TrimSpace(html.UnescapeString(postPolicy.Sanitize(input)))
}
