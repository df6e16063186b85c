package render

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxDetailLen bounds provider and backend reason strings shown to users
const maxDetailLen = 200

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeDetail strips all markup from an untrusted reason string and
// trims it to a displayable length. The result is plain text; html/template
// escapes it again on output.
func SanitizeDetail(detail string) string {
	clean := html.UnescapeString(strictPolicy.Sanitize(detail))
	clean = strings.Join(strings.Fields(clean), " ")
	if r := []rune(clean); len(r) > maxDetailLen {
		clean = string(r[:maxDetailLen]) + "…"
	}
	return clean
}
