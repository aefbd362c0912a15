package dense

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/consentforge/consentforge/engine/chunk"
	"github.com/consentforge/consentforge/engine/core"
)

// Record is one embedded chunk. Pos mirrors the chunk's position in the
// index's chunk sequence so fused rankings align with the sparse model.
type Record struct {
	ChunkID     string    `json:"chunk_id"`
	Pos         int       `json:"pos"`
	Text        string    `json:"text"`
	Heading     string    `json:"heading_norm"`
	SectionPath string    `json:"section_path"`
	Page        int       `json:"page"`
	Embedding   []float32 `json:"embedding"`
}

// Match is a similarity search result with a cosine relevance score.
type Match struct {
	ChunkID     string
	Pos         int
	Score       float64
	Text        string
	Heading     string
	SectionPath string
	Page        int
}

// Store answers similarity and max-marginal-relevance queries over an
// immutable record set. Safe for concurrent reads once built.
type Store struct {
	embedder Embedder
	records  []Record
}

// NewStore wraps existing records with an embedder for query encoding.
func NewStore(embedder Embedder, records []Record) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("dense: embedder is required")
	}
	return &Store{embedder: embedder, records: records}, nil
}

// BuildStore embeds chunks in corpus order and returns a ready store.
// Embedding failures surface as RetrievalProviderError; nothing partial is
// retained.
func BuildStore(ctx context.Context, embedder Embedder, chunks []chunk.Chunk) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("dense: embedder is required")
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, core.NewRetrievalProviderError("embed documents", err)
	}
	records := make([]Record, len(chunks))
	for i := range chunks {
		records[i] = Record{
			ChunkID:     chunks[i].ID,
			Pos:         i,
			Text:        chunks[i].Text,
			Heading:     chunks[i].Heading,
			SectionPath: chunks[i].SectionPath,
			Page:        chunks[i].PageStart,
			Embedding:   vectors[i],
		}
	}
	return &Store{embedder: embedder, records: records}, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.records)
}

// SimilaritySearch returns the k records closest to query by cosine
// similarity, ordered by descending score with position as tie-break.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]Match, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, core.NewRetrievalProviderError("similarity search", err)
	}
	matches := s.rankBySimilarity(vector)
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// MaxMarginalRelevanceSearch fetches fetchK candidates by similarity and
// greedily re-ranks them down to k, trading relevance against diversity:
// each step picks argmax lambda*sim(query,d) - (1-lambda)*max sim(d, chosen).
func (s *Store) MaxMarginalRelevanceSearch(
	ctx context.Context,
	query string,
	k, fetchK int,
	lambda float64,
) ([]Match, error) {
	if fetchK < k {
		fetchK = k
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, core.NewRetrievalProviderError("mmr search", err)
	}
	pool := s.rankBySimilarity(vector)
	if len(pool) > fetchK {
		pool = pool[:fetchK]
	}
	if k <= 0 || len(pool) <= 1 {
		return pool, nil
	}
	selected := make([]Match, 0, k)
	remaining := append([]Match(nil), pool...)
	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			redundancy := 0.0
			for _, chosen := range selected {
				sim := cosineSimilarity(s.records[cand.Pos].Embedding, s.records[chosen.Pos].Embedding)
				if sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*cand.Score - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected, nil
}

func (s *Store) rankBySimilarity(query []float32) []Match {
	matches := make([]Match, 0, len(s.records))
	for i := range s.records {
		rec := &s.records[i]
		matches = append(matches, Match{
			ChunkID:     rec.ChunkID,
			Pos:         rec.Pos,
			Score:       cosineSimilarity(rec.Embedding, query),
			Text:        rec.Text,
			Heading:     rec.Heading,
			SectionPath: rec.SectionPath,
			Page:        rec.Page,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].Pos < matches[j].Pos
		}
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Save persists the record set with atomic write-replace semantics.
func (s *Store) Save(path string) error {
	payload := storePayload{Records: s.records}
	return core.WriteJSONFile(path, payload)
}

// LoadStore reads a persisted record set; missing maps to ErrIndexNotFound.
func LoadStore(path string, embedder Embedder) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("dense: embedder is required")
	}
	var payload storePayload
	if err := core.ReadJSONFile(path, &payload); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrIndexNotFound
		}
		return nil, fmt.Errorf("dense: load store %q: %w", path, err)
	}
	return &Store{embedder: embedder, records: payload.Records}, nil
}

type storePayload struct {
	Records []Record `json:"records"`
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
