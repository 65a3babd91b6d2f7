package parser

import (
	"context"
	"fmt"
	"path/filepath"
)

// LegacyParser claims the pre-2007 Word format so that such files fail with a
// clear error instead of an unsupported-extension one.
type LegacyParser struct{}

func (p *LegacyParser) SupportedFormats() []string { return []string{"doc"} }

func (p *LegacyParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	return nil, fmt.Errorf("%w: %s (convert to .docx)", ErrLegacyFormat, filepath.Base(path))
}
