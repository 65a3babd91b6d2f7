package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts the text layer of a PDF. Scanned documents without a
// text layer produce an empty result.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	var sections []Section
	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		sections = append(sections, splitPageIntoSections(text, i)...)
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
		Metadata: map[string]string{"pages": fmt.Sprintf("%d", totalPages)},
	}, nil
}

// splitPageIntoSections breaks page text into logical sections at lines that
// look like headings.
func splitPageIntoSections(text string, pageNum int) []Section {
	var sections []Section
	var current strings.Builder
	var heading string

	flush := func() {
		if current.Len() == 0 && heading == "" {
			return
		}
		sections = append(sections, Section{
			Heading:    heading,
			Content:    strings.TrimSpace(current.String()),
			Level:      detectHeadingLevel(heading),
			PageNumber: pageNum,
			Type:       "section",
		})
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isLikelyHeading(trimmed) {
			flush()
			heading = trimmed
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(trimmed)
	}
	flush()

	return sections
}

func isLikelyHeading(line string) bool {
	if len(line) > 100 {
		return false
	}
	// All caps with at least one letter
	if len(line) > 2 && line == strings.ToUpper(line) && line != strings.ToLower(line) {
		return true
	}
	// Numbered section like "1.", "2.3 Pensions"
	if line[0] >= '0' && line[0] <= '9' {
		head := line[:min(6, len(line))]
		if i := strings.Index(head, "."); i > 0 && (i+1 == len(line) || line[i+1] == ' ' || (line[i+1] >= '0' && line[i+1] <= '9')) {
			return true
		}
	}
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "section ") || strings.HasPrefix(lower, "appendix ")
}

func detectHeadingLevel(heading string) int {
	if heading == "" {
		return 0
	}
	first := strings.SplitN(heading, " ", 2)[0]
	if first[0] >= '0' && first[0] <= '9' {
		return strings.Count(strings.TrimSuffix(first, "."), ".") + 1
	}
	if heading == strings.ToUpper(heading) {
		return 1
	}
	return 2
}
