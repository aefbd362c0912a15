package dense

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentforge/consentforge/engine/chunk"
	"github.com/consentforge/consentforge/engine/core"
)

// axisEmbedder maps known phrases onto fixed unit vectors so similarity
// rankings in tests are fully deterministic.
type axisEmbedder struct {
	vectors map[string][]float32
	fail    bool
}

func (e *axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("provider down")
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (e *axisEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func testEmbedder() *axisEmbedder {
	return &axisEmbedder{vectors: map[string][]float32{
		"enrollment":  {1, 0, 0},
		"risks":       {0, 1, 0},
		"procedures":  {0, 0, 1},
		"near enroll": {0.9, 0.1, 0},
		"mixed":       {0.7, 0.7, 0},
	}}
}

func testChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{ID: "c-enroll", Text: "enrollment", Heading: "purpose", SectionPath: "Purpose", PageStart: 1},
		{ID: "c-risks", Text: "risks", Heading: "risks", SectionPath: "Risks", PageStart: 2},
		{ID: "c-proc", Text: "procedures", Heading: "study procedures", SectionPath: "Procedures", PageStart: 3},
		{ID: "c-near", Text: "near enroll", Heading: "purpose", SectionPath: "Purpose", PageStart: 1},
	}
}

func TestBuildStore(t *testing.T) {
	t.Run("Should embed chunks in corpus order", func(t *testing.T) {
		store, err := BuildStore(context.Background(), testEmbedder(), testChunks())
		require.NoError(t, err)
		assert.Equal(t, 4, store.Len())
		assert.Equal(t, "c-enroll", store.records[0].ChunkID)
		assert.Equal(t, 0, store.records[0].Pos)
		assert.Equal(t, 3, store.records[3].Pos)
	})
	t.Run("Should wrap provider failures", func(t *testing.T) {
		_, err := BuildStore(context.Background(), &axisEmbedder{fail: true}, testChunks())
		require.Error(t, err)
		var provErr *core.RetrievalProviderError
		assert.ErrorAs(t, err, &provErr)
	})
}

func TestSimilaritySearch(t *testing.T) {
	store, err := BuildStore(context.Background(), testEmbedder(), testChunks())
	require.NoError(t, err)
	t.Run("Should rank closest record first", func(t *testing.T) {
		matches, err := store.SimilaritySearch(context.Background(), "enrollment", 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "c-enroll", matches[0].ChunkID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
		assert.Equal(t, "c-near", matches[1].ChunkID)
	})
	t.Run("Should return all records when k exceeds size", func(t *testing.T) {
		matches, err := store.SimilaritySearch(context.Background(), "risks", 50)
		require.NoError(t, err)
		assert.Len(t, matches, 4)
		assert.Equal(t, "c-risks", matches[0].ChunkID)
	})
	t.Run("Should wrap query embedding failure", func(t *testing.T) {
		failing, err := NewStore(&axisEmbedder{fail: true}, store.records)
		require.NoError(t, err)
		_, err = failing.SimilaritySearch(context.Background(), "enrollment", 2)
		var provErr *core.RetrievalProviderError
		assert.ErrorAs(t, err, &provErr)
	})
}

func TestMaxMarginalRelevanceSearch(t *testing.T) {
	store, err := BuildStore(context.Background(), testEmbedder(), testChunks())
	require.NoError(t, err)
	t.Run("Should prefer diversity at low lambda", func(t *testing.T) {
		// "mixed" is close to both enrollment chunks and the risks chunk.
		// With lambda 0.25 the second pick should avoid the redundant
		// near-duplicate of the first.
		matches, err := store.MaxMarginalRelevanceSearch(context.Background(), "mixed", 2, 4, 0.25)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		first := matches[0].ChunkID
		assert.Contains(t, []string{"c-enroll", "c-risks"}, first)
		assert.NotEqual(t, first, matches[1].ChunkID)
		assert.NotEqual(t, "c-near", matches[1].ChunkID)
	})
	t.Run("Should follow pure relevance at lambda one", func(t *testing.T) {
		matches, err := store.MaxMarginalRelevanceSearch(context.Background(), "enrollment", 2, 4, 1.0)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "c-enroll", matches[0].ChunkID)
		assert.Equal(t, "c-near", matches[1].ChunkID)
	})
	t.Run("Should raise fetchK to at least k", func(t *testing.T) {
		matches, err := store.MaxMarginalRelevanceSearch(context.Background(), "enrollment", 3, 1, 0.75)
		require.NoError(t, err)
		assert.Len(t, matches, 3)
	})
}

func TestStorePersistence(t *testing.T) {
	t.Run("Should round-trip records through a snapshot", func(t *testing.T) {
		store, err := BuildStore(context.Background(), testEmbedder(), testChunks())
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "vectors.json")
		require.NoError(t, store.Save(path))
		loaded, err := LoadStore(path, testEmbedder())
		require.NoError(t, err)
		assert.Equal(t, store.records, loaded.records)
		matches, err := loaded.SimilaritySearch(context.Background(), "procedures", 1)
		require.NoError(t, err)
		assert.Equal(t, "c-proc", matches[0].ChunkID)
	})
	t.Run("Should map a missing snapshot to ErrIndexNotFound", func(t *testing.T) {
		_, err := LoadStore(filepath.Join(t.TempDir(), "missing.json"), testEmbedder())
		assert.ErrorIs(t, err, core.ErrIndexNotFound)
	})
}
