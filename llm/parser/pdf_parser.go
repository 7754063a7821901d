package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. Every page is extracted and concatenated
// with a "--- Page N ---" marker so answers can be traced back to a page
// even after chunking.
type PDFParser struct{}

// NewPDFParser creates a new PDF parser
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse reads and parses a PDF from the reader
func (p *PDFParser) Parse(ctx context.Context, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return p.extract(reader, "", len(data))
}

// ParseFile reads and parses a PDF file
func (p *PDFParser) ParseFile(ctx context.Context, filePath string) (*Document, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF: %w", err)
	}
	return p.extract(reader, filePath, int(info.Size()))
}

// extract walks every page, concatenating extracted text behind a page
// marker. Pages that fail individually are skipped; a document where no
// page yields text is reported as unreadable.
func (p *PDFParser) extract(reader *pdf.Reader, filePath string, size int) (*Document, error) {
	total := reader.NumPage()
	var sb strings.Builder
	extracted := 0

	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n--- Page %d ---\n", i))
		sb.WriteString(text)
		extracted++
	}

	content := strings.TrimSpace(sb.String())
	if extracted == 0 || content == "" {
		return nil, fmt.Errorf("no extractable text in PDF (%d pages)", total)
	}

	return &Document{
		Content: content,
		Title:   ExtractTitle(content, filePath),
		Metadata: map[string]interface{}{
			"page_count": total,
			"file_size":  size,
		},
	}, nil
}

// FileType returns the file type this parser handles
func (p *PDFParser) FileType() FileType {
	return FileTypePDF
}
