package chunk

// Chunk is the atomic retrieval unit: a bounded span of document text with
// a content-derived identifier that is stable across rebuilds.
type Chunk struct {
	ID          string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	SectionPath string `json:"section_path"`
	Heading     string `json:"heading_norm"`
	PageStart   int    `json:"page_start"`
	PageEnd     int    `json:"page_end"`
	Text        string `json:"text"`
	TokenCount  int    `json:"token_count"`
}

// DefaultSectionPath labels chunks when no structural segmentation ran.
const DefaultSectionPath = "Document"

// DefaultHeading is the normalized heading for unsegmented content.
const DefaultHeading = "document content"
