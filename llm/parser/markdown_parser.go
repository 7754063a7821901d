package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// MarkdownParser handles Markdown files. Markdown is close enough to
// plain text to index directly; only link targets and code fences are
// stripped so they don't pollute retrieval.
type MarkdownParser struct{}

// NewMarkdownParser creates a new Markdown parser
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

var (
	mdLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdImageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdFenceRe = regexp.MustCompile("(?m)^```.*$")
)

// Parse reads and parses Markdown from the reader
func (p *MarkdownParser) Parse(ctx context.Context, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}
	return p.parse(string(data), ""), nil
}

// ParseFile reads and parses a Markdown file
func (p *MarkdownParser) ParseFile(ctx context.Context, filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.parse(string(data), filePath), nil
}

func (p *MarkdownParser) parse(raw, filePath string) *Document {
	content := mdImageRe.ReplaceAllString(raw, "")
	content = mdLinkRe.ReplaceAllString(content, "$1")
	content = mdFenceRe.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	return &Document{
		Content: content,
		Title:   ExtractTitle(content, filePath),
		Metadata: map[string]interface{}{
			"file_size": len(raw),
		},
	}
}

// FileType returns the file type this parser handles
func (p *MarkdownParser) FileType() FileType {
	return FileTypeMD
}
