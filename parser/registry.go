package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Registry resolves a parser from a file extension.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&DOCXParser{}, &PDFParser{}, &XLSXParser{}, &TextParser{}, &LegacyParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get returns the parser for format (an extension without the dot).
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// Register adds or replaces the parser for format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Formats lists the registered extensions in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ReadText parses the file at path with the parser registered for its
// extension and returns the trimmed plain text. An empty string with a nil
// error means the document had no extractable text.
func (r *Registry) ReadText(ctx context.Context, path string) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	p, err := r.Get(ext)
	if err != nil {
		return "", err
	}
	res, err := p.Parse(ctx, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text()), nil
}
