package chunk

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/extract"
)

// separators split on structure first and degrade towards characters, so
// chunks keep paragraph and sentence boundaries where the text allows it.
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " ", ""}

const idSeedChars = 100

// Builder splits extracted pages into overlapping chunks.
type Builder struct {
	size     int
	overlap  int
	minChars int
}

// NewBuilder validates the chunking settings and returns a Builder.
func NewBuilder(size, overlap, minChars int) (*Builder, error) {
	if size <= 0 {
		return nil, errors.New("chunk: size must be greater than zero")
	}
	if overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", overlap, size)
	}
	if minChars < 0 {
		return nil, errors.New("chunk: min chars cannot be negative")
	}
	return &Builder{size: size, overlap: overlap, minChars: minChars}, nil
}

// Build splits pages into chunks. Chunk ids derive from the document id,
// the chunk sequence index, and the first characters of the chunk text, so
// re-chunking identical input reproduces identical ids. Returns
// core.ErrEmptyDocument when no page yields a usable chunk.
func (b *Builder) Build(documentID string, pages []extract.Page) ([]Chunk, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, errors.New("chunk: document id is required")
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(b.size),
		textsplitter.WithChunkOverlap(b.overlap),
		textsplitter.WithSeparators(separators),
	)
	chunks := make([]Chunk, 0, len(pages))
	seq := 0
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		segments, err := splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("chunk: split page %d: %w", page.Number, err)
		}
		for _, segment := range segments {
			segment = strings.TrimSpace(segment)
			if len(segment) < b.minChars {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:          chunkID(documentID, seq, segment),
				DocumentID:  documentID,
				SectionPath: DefaultSectionPath,
				Heading:     DefaultHeading,
				PageStart:   page.Number,
				PageEnd:     page.Number,
				Text:        segment,
				TokenCount:  estimateTokens(segment),
			})
			seq++
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("chunk: document %s: %w", documentID, core.ErrEmptyDocument)
	}
	return chunks, nil
}

func chunkID(documentID string, seq int, text string) string {
	seed := text
	if len(seed) > idSeedChars {
		seed = seed[:idSeedChars]
	}
	sum := sha1.Sum([]byte(documentID + "|" + strconv.Itoa(seq) + "|" + seed))
	return hex.EncodeToString(sum[:])
}

func estimateTokens(text string) int {
	tokens := len(text) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}
