package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/consentforge/consentforge/pkg/logger"
)

// PDFExtractor reads page text from PDF files.
type PDFExtractor struct{}

// NewPDFExtractor returns a PDF-backed Extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Pages extracts plain text per page. Pages that cannot be decoded yield
// empty text instead of failing the document; a document where every page is
// empty is reported downstream by the chunking stage.
func (e *PDFExtractor) Pages(ctx context.Context, path string) ([]Page, error) {
	log := logger.FromContext(ctx)
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open pdf %q: %w", path, err)
	}
	defer file.Close()

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for num := 1; num <= total; num++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		page := reader.Page(num)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: num})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn("Page text extraction failed", "path", path, "page", num, "error", err)
			pages = append(pages, Page{Number: num})
			continue
		}
		pages = append(pages, Page{Number: num, Text: strings.TrimSpace(text)})
	}
	log.Debug("PDF extracted", "path", path, "pages", len(pages))
	return pages, nil
}
