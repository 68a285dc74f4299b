package blog

import (
	"log/slog"
	"regexp"
	"sort"
)

// itemPattern matches one non-nested <item>...</item> block
var itemPattern = regexp.MustCompile(`(?s)<item(?:\s[^>]*)?>(.*?)</item>`)

// Parser turns a raw feed document into records, newest first
type Parser struct {
	extractor *Extractor
}

// NewParser creates a parser using extractor for each item
func NewParser(extractor *Extractor) *Parser {
	if extractor == nil {
		extractor = NewExtractor(DefaultAuthor)
	}
	return &Parser{extractor: extractor}
}

// Parse never fails; a document without items yields an empty, non-nil slice
func (p *Parser) Parse(document string) []Record {
	blocks := splitItems(document)
	records := make([]Record, 0, len(blocks))

	for _, block := range blocks {
		records = append(records, p.extractor.Extract(block))
	}

	// Stable so equal dates keep document order
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})

	slog.Debug("Parsed feed document", "bytes", len(document), "records", len(records))
	return records
}

func splitItems(document string) []string {
	matches := itemPattern.FindAllStringSubmatch(document, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}
