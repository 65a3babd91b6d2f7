package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DOCXParser reads WordprocessingML documents. Paragraphs and tables are kept
// in document order; tables are rendered as pipe-delimited rows.
type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading document.xml: %w", err)
	}

	sections, err := parseDocxXML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
	}, nil
}

// docxWalker accumulates sections while streaming document.xml tokens.
type docxWalker struct {
	sections []Section
	heading  string
	level    int
	content  strings.Builder

	para     strings.Builder
	style    string
	inPPr    bool
	inText   bool
	tblDepth int
	row      []string
	cell     strings.Builder
}

func parseDocxXML(data []byte) ([]Section, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	w := &docxWalker{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t)
		case xml.EndElement:
			w.end(t)
		case xml.CharData:
			if w.inText {
				w.para.Write(t)
			}
		}
	}
	w.flush()
	return w.sections, nil
}

func (w *docxWalker) start(t xml.StartElement) {
	switch t.Name.Local {
	case "p":
		w.para.Reset()
		w.style = ""
	case "pPr":
		w.inPPr = true
	case "pStyle":
		if w.inPPr {
			w.style = attrValue(t, "val")
		}
	case "t":
		w.inText = true
	case "tab":
		if !w.inPPr {
			w.para.WriteByte('\t')
		}
	case "br", "cr":
		w.para.WriteByte('\n')
	case "tbl":
		w.tblDepth++
	case "tr":
		if w.tblDepth == 1 {
			w.row = w.row[:0]
		}
	case "tc":
		if w.tblDepth == 1 {
			w.cell.Reset()
		}
	}
}

func (w *docxWalker) end(t xml.EndElement) {
	switch t.Name.Local {
	case "pPr":
		w.inPPr = false
	case "t":
		w.inText = false
	case "p":
		w.endParagraph()
	case "tc":
		if w.tblDepth == 1 {
			w.row = append(w.row, strings.TrimSpace(w.cell.String()))
		}
	case "tr":
		if w.tblDepth == 1 && len(w.row) > 0 {
			w.appendLine("| " + strings.Join(w.row, " | ") + " |")
		}
	case "tbl":
		w.tblDepth--
	}
}

func (w *docxWalker) endParagraph() {
	text := strings.TrimSpace(w.para.String())
	w.para.Reset()
	if text == "" {
		return
	}

	if w.tblDepth > 0 {
		if w.cell.Len() > 0 {
			w.cell.WriteByte(' ')
		}
		w.cell.WriteString(text)
		return
	}

	if level, ok := headingStyleLevel(w.style); ok {
		w.flush()
		w.heading = text
		w.level = level
		return
	}
	w.appendLine(text)
}

func (w *docxWalker) appendLine(line string) {
	if w.content.Len() > 0 {
		w.content.WriteByte('\n')
	}
	w.content.WriteString(line)
}

func (w *docxWalker) flush() {
	if w.content.Len() == 0 && w.heading == "" {
		return
	}
	w.sections = append(w.sections, Section{
		Heading: w.heading,
		Content: w.content.String(),
		Level:   w.level,
		Type:    "section",
	})
	w.content.Reset()
	w.heading = ""
	w.level = 0
}

func attrValue(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingStyleLevel reports whether a paragraph style is a heading and, if
// so, its level ("Title" and "Heading1" are level 1).
func headingStyleLevel(style string) (int, bool) {
	lower := strings.ToLower(style)
	switch {
	case strings.HasPrefix(lower, "title"):
		return 1, true
	case strings.HasPrefix(lower, "heading"):
		n, err := strconv.Atoi(strings.TrimPrefix(lower, "heading"))
		if err != nil || n < 1 {
			return 1, true
		}
		return n, true
	}
	return 0, false
}
