package extract

import "context"

// Page is one page of extracted document text.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Extractor produces per-page plain text from a source document.
type Extractor interface {
	Pages(ctx context.Context, path string) ([]Page, error)
}
