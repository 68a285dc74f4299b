// Package preview provides an interactive blog post preview using Bubble Tea TUI.
package preview

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/blog-mirror/internal/blog"
)

const (
	maxTitleLength = 70
	ruler          = "═══════════════════════════════════════════════════════════════════════\n"
)

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	var line strings.Builder
	lineLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := len([]rune(word))

		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString(line.String())
			result.WriteString("\n")
			line.Reset()
			lineLen = 0
		}

		if lineLen > 0 {
			line.WriteString(" ")
			lineLen++
		}

		line.WriteString(word)
		lineLen += wordLen
	}
	result.WriteString(line.String())

	return result.String()
}

// FormatCompactListItem formats a record in compact list format
// Example: " 1. 2024-06-01  Notes on caching (Site Owner)"
func FormatCompactListItem(index int, record blog.Record) string {
	title := record.Title
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength-3]) + "..."
	}

	return fmt.Sprintf("%2d. %-10s  %s (%s)", index+1, shortDate(record), title, record.Author)
}

// FormatDetailedItem formats a record with all fields
func FormatDetailedItem(record blog.Record) string {
	var b strings.Builder

	b.WriteString(ruler)
	fmt.Fprintf(&b, "Title: %s\n", record.Title)
	fmt.Fprintf(&b, "Link: %s\n", record.Link)
	fmt.Fprintf(&b, "Author: %s\n", record.Author)
	if record.Timestamp == blog.UnknownTimestamp {
		fmt.Fprintf(&b, "Published: %s (unrecognised, sorted last)\n", record.PublishedAt)
	} else {
		fmt.Fprintf(&b, "Published: %s\n", record.PublishedAt)
	}

	if record.HasImage() {
		fmt.Fprintf(&b, "Image: %s\n", record.ImageURL())
	}

	if record.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", wrapText(record.Description, 70))
	}

	b.WriteString(ruler)

	return b.String()
}

// FormatJSONItem renders a record exactly as the API serves it
func FormatJSONItem(record blog.Record) string {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error encoding record: %s", err)
	}
	return string(data)
}

// shortDate renders the sortable timestamp as a date, falling back to "unknown"
func shortDate(record blog.Record) string {
	if record.Timestamp == blog.UnknownTimestamp {
		return "unknown"
	}
	return time.UnixMilli(record.Timestamp).UTC().Format("2006-01-02")
}
