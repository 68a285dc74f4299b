package blog

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	stripPolicy  = newStripPolicy()
	nbspReplacer = strings.NewReplacer("\u00a0", " ")
)

// newStripPolicy drops every tag, leaving a space where one was so that
// adjacent blocks do not run together
func newStripPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}

// decodeEntities resolves HTML entities and turns non-breaking spaces into plain spaces
func decodeEntities(s string) string {
	return nbspReplacer.Replace(html.UnescapeString(s))
}

// stripTags removes all markup and returns decoded plain text with whitespace runs collapsed
func stripTags(s string) string {
	// StrictPolicy leaves text escaped, so decode afterwards
	text := decodeEntities(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// truncateRunes hard-cuts s to at most limit runes without adding an ellipsis
func truncateRunes(s string, limit int) string {
	if limit < 0 {
		return ""
	}

	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
