package blog

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/blog-mirror/pkg/urlutils"
)

// fieldRule extracts one field from an item block. Patterns are tried in
// order and the first submatch wins.
type fieldRule struct {
	name     string
	patterns []*regexp.Regexp
}

func (r fieldRule) find(block string) (string, bool) {
	for _, pattern := range r.patterns {
		if m := pattern.FindStringSubmatch(block); m != nil {
			return m[1], true
		}
	}
	slog.Debug("Feed item field not found, using default", "field", r.name)
	return "", false
}

func cdata(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + tag + `>\s*<!\[CDATA\[(.*?)\]\]>\s*</` + tag + `>`)
}

func plain(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
}

var (
	titleRule       = fieldRule{name: "title", patterns: []*regexp.Regexp{cdata("title"), plain("title")}}
	descriptionRule = fieldRule{name: "description", patterns: []*regexp.Regexp{cdata("description")}}
	linkRule        = fieldRule{name: "link", patterns: []*regexp.Regexp{plain("link")}}
	dateRule        = fieldRule{name: "publishedAt", patterns: []*regexp.Regexp{
		plain("pubDate"), plain("published"), plain("updated"), plain("dc:date"),
	}}
	authorRule = fieldRule{name: "author", patterns: []*regexp.Regexp{
		cdata("dc:creator"), plain("dc:creator"), cdata("author"), plain("author"),
	}}
)

// dateLayouts are tried in order when deriving Record.Timestamp
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Extractor builds a Record from the raw markup of one feed item.
// Every field falls back to its own sentinel, so a malformed block still
// yields a complete record.
type Extractor struct {
	defaultAuthor string
	now           func() time.Time
}

// NewExtractor creates an extractor that attributes unsigned posts to defaultAuthor
func NewExtractor(defaultAuthor string) *Extractor {
	if strings.TrimSpace(defaultAuthor) == "" {
		defaultAuthor = DefaultAuthor
	}
	return &Extractor{
		defaultAuthor: defaultAuthor,
		now:           time.Now,
	}
}

// Extract returns exactly one record for block. Invalid UTF-8 is replaced
// with U+FFFD so a record reads the same before and after a cache round trip.
func (e *Extractor) Extract(block string) Record {
	block = strings.ToValidUTF8(block, "\uFFFD")

	record := Record{
		Title:  e.title(block),
		Link:   e.link(block),
		Author: e.author(block),
	}

	record.Description, record.Image = e.description(block, record.Link)
	record.PublishedAt = e.publishedAt(block)
	record.Timestamp = parseTimestamp(record.PublishedAt)

	return record
}

func (e *Extractor) title(block string) string {
	raw, ok := titleRule.find(block)
	if !ok {
		return UntitledTitle
	}

	title := strings.TrimSpace(decodeEntities(raw))
	if title == "" {
		return UntitledTitle
	}
	return title
}

func (e *Extractor) description(block, link string) (string, *string) {
	raw, ok := descriptionRule.find(block)
	if !ok {
		return "", nil
	}

	image := firstImage(raw, link)
	text := truncateRunes(strings.TrimSpace(stripTags(raw)), MaxDescriptionLength)
	return text, image
}

func (e *Extractor) link(block string) string {
	raw, ok := linkRule.find(block)
	if !ok {
		return MissingLink
	}

	link := strings.TrimSpace(decodeEntities(raw))
	if link == "" {
		return MissingLink
	}
	return link
}

func (e *Extractor) publishedAt(block string) string {
	if raw, ok := dateRule.find(block); ok {
		if date := strings.TrimSpace(raw); date != "" {
			return date
		}
	}
	return e.now().UTC().Format(time.RFC1123Z)
}

func (e *Extractor) author(block string) string {
	raw, ok := authorRule.find(block)
	if !ok {
		return e.defaultAuthor
	}

	author := strings.TrimSpace(decodeEntities(raw))
	if author == "" {
		return e.defaultAuthor
	}
	return author
}

// firstImage returns the src of the first <img> in an HTML fragment.
// Relative sources are resolved against the post link; anything that is
// still not an absolute URL is dropped.
func firstImage(fragment, link string) *string {
	if !strings.Contains(strings.ToLower(fragment), "<img") {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	src, ok := doc.Find("img").First().Attr("src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return nil
	}

	if !urlutils.IsValidURL(src) && urlutils.IsValidURL(link) {
		if resolved, err := urlutils.ResolveURL(link, src); err == nil {
			src = resolved
		}
	}

	if !urlutils.IsValidURL(src) {
		return nil
	}
	return &src
}

// parseTimestamp converts a feed date to epoch milliseconds, or UnknownTimestamp
func parseTimestamp(date string) int64 {
	date = strings.TrimSpace(date)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.UnixMilli()
		}
	}
	return UnknownTimestamp
}
