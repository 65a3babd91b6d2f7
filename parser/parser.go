// Package parser turns document files into plain text for extraction.
package parser

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when no parser is registered for an extension.
	ErrUnsupportedFormat = errors.New("parser: unsupported document format")

	// ErrLegacyFormat is returned for binary Office formats that have no native reader.
	ErrLegacyFormat = errors.New("parser: legacy binary format is not supported")
)

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section // Ordered sections extracted from the document
	Method   string    // "native"
	Metadata map[string]string
}

// Section represents a logical section of a parsed document.
type Section struct {
	Heading    string
	Content    string
	Level      int // Heading level (1=top, 2=sub, etc.)
	PageNumber int
	Type       string // "section", "table", "paragraph"
	Metadata   map[string]string
}

// Text flattens the sections into newline separated plain text. Headings are
// emitted on their own line ahead of their content.
func (r *ParseResult) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range r.Sections {
		for _, part := range []string{s.Heading, s.Content} {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(part)
		}
	}
	return b.String()
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
