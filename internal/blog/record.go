// Package blog turns a third-party syndication feed into blog post records
// and serves them through a short-lived cache.
package blog

import "math"

// Sentinels used when a field cannot be extracted
const (
	UntitledTitle = "Untitled"
	MissingLink   = "#"
	DefaultAuthor = "Site Owner"
)

// MaxDescriptionLength is the rune limit for Record.Description
const MaxDescriptionLength = 200

// UnknownTimestamp is assigned to records whose date cannot be parsed so they sort oldest
const UnknownTimestamp int64 = math.MinInt64

// Record is one syndicated post
type Record struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	// PublishedAt is the date string as it appeared in the feed
	PublishedAt string `json:"publishedAt"`
	// Timestamp is PublishedAt in epoch milliseconds, used only for ordering
	Timestamp int64   `json:"timestamp"`
	Author    string  `json:"author"`
	Image     *string `json:"image"`
}

// HasImage reports whether a featured image was found
func (r Record) HasImage() bool {
	return r.Image != nil
}

// ImageURL returns the featured image or an empty string
func (r Record) ImageURL() string {
	if r.Image == nil {
		return ""
	}
	return *r.Image
}
