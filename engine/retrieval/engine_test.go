package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentforge/consentforge/engine/chunk"
	"github.com/consentforge/consentforge/engine/dense"
	"github.com/consentforge/consentforge/engine/index"
	"github.com/consentforge/consentforge/engine/sparse"
	"github.com/consentforge/consentforge/pkg/config"
)

type axisEmbedder struct {
	vectors map[string][]float32
}

func (e *axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (e *axisEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.EmbedQuery(ctx, t)
		out[i] = v
	}
	return out, nil
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	chunks := []chunk.Chunk{
		{ID: "c0", Text: "study objectives and rationale", Heading: "objectives", SectionPath: "Protocol", PageStart: 1},
		{ID: "c1", Text: "potential risks and adverse events", Heading: "risks", SectionPath: "Protocol", PageStart: 2},
		{ID: "c2", Text: "visit schedule and enrollment details", Heading: "enrollment", SectionPath: "Protocol", PageStart: 3},
		{ID: "c3", Text: "expected benefits for participants", Heading: "benefits", SectionPath: "Protocol", PageStart: 4},
	}
	embedder := &axisEmbedder{vectors: map[string][]float32{
		chunks[0].Text: {1, 0, 0},
		chunks[1].Text: {0, 1, 0},
		chunks[2].Text: {0, 0, 1},
		chunks[3].Text: {0.5, 0.5, 0},
		"objectives":   {1, 0, 0},
		"risks":        {0, 1, 0},
		"enrollment":   {0, 0, 1},
	}}
	corpus := make([]string, len(chunks))
	for i := range chunks {
		corpus[i] = chunks[i].Heading + "\n" + chunks[i].Text
	}
	store, err := dense.BuildStore(context.Background(), embedder, chunks)
	require.NoError(t, err)
	snap := &index.Snapshot{
		Chunks: chunks,
		Sparse: sparse.Build(corpus, 1.5, 0.75),
		Store:  store,
	}
	return NewEngine(snap, config.Default())
}

func TestSearchDense(t *testing.T) {
	t.Run("Should use provider scores for similarity search", func(t *testing.T) {
		eng := testEngine(t)
		hits, err := eng.Search(context.Background(), "risks", Options{
			Mode:       ModeDense,
			SearchType: SearchSimilarity,
			KDense:     2,
		})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "c1", hits[0].ChunkID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
		assert.InDelta(t, hits[0].Score, hits[0].Sources.Dense, 1e-9)
		assert.Zero(t, hits[0].Sources.Sparse)
	})
	t.Run("Should apply rank decay for mmr results", func(t *testing.T) {
		eng := testEngine(t)
		hits, err := eng.Search(context.Background(), "objectives", Options{
			Mode:       ModeDense,
			SearchType: SearchMMR,
			KDense:     3,
			Lambda:     0.75,
			FetchK:     4,
		})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
		assert.Zero(t, hits[0].Sources.Dense)
		if len(hits) > 1 {
			assert.InDelta(t, 0.95, hits[1].Score, 1e-9)
		}
	})
	t.Run("Should apply section heading filter without backfill", func(t *testing.T) {
		eng := testEngine(t)
		hits, err := eng.Search(context.Background(), "risks", Options{
			Mode:       ModeDense,
			Section:    "Risks",
			SearchType: SearchSimilarity,
			KDense:     4,
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c1", hits[0].ChunkID)
	})
	t.Run("Should fall back to the configured section profile", func(t *testing.T) {
		eng := testEngine(t)
		// Risks profile is similarity k=12, so provider scores survive.
		hits, err := eng.Search(context.Background(), "risks", Options{
			Mode:    ModeDense,
			Section: "Risks",
		})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	})
}

func TestSearchHybrid(t *testing.T) {
	t.Run("Should fuse normalized sparse and dense scores", func(t *testing.T) {
		eng := testEngine(t)
		hits, err := eng.Search(context.Background(), "risks", Options{Mode: ModeHybrid})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "c1", hits[0].ChunkID)
		// c1 tops both the sparse and dense pools, so normalization puts
		// both sides at 1.0 and fusion yields the full 0.6+0.4 weight.
		assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
		assert.InDelta(t, 1.0, hits[0].Sources.Sparse, 1e-9)
		assert.InDelta(t, 1.0, hits[0].Sources.Dense, 1e-9)
	})
	t.Run("Should rank lexical matches first when the dense signal is flat", func(t *testing.T) {
		eng := testEngine(t)
		hits, err := eng.Search(context.Background(), "enrollment schedule", Options{Mode: ModeHybrid})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "c2", hits[0].ChunkID)
	})
	t.Run("Should cap results at k final", func(t *testing.T) {
		eng := testEngine(t)
		hits, err := eng.Search(context.Background(), "risks", Options{Mode: ModeHybrid, KFinal: 1})
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})
	t.Run("Should filter headings after fusion", func(t *testing.T) {
		eng := testEngine(t)
		hits, err := eng.Search(context.Background(), "risks", Options{Mode: ModeHybrid, Section: "Benefits"})
		require.NoError(t, err)
		for _, h := range hits {
			assert.Equal(t, "benefits", h.Heading)
		}
	})
}

func TestAllowedHeading(t *testing.T) {
	t.Run("Should match substrings in both directions", func(t *testing.T) {
		assert.True(t, allowedHeading("Risks", "Potential Risks and Discomforts"))
		assert.True(t, allowedHeading("Risks", "risk"))
		assert.False(t, allowedHeading("Risks", "study design"))
	})
	t.Run("Should keep empty sections and headings", func(t *testing.T) {
		assert.True(t, allowedHeading("", "anything"))
		assert.True(t, allowedHeading("Risks", ""))
		assert.True(t, allowedHeading("Risks", "   "))
	})
}

func TestTokenCounter(t *testing.T) {
	counter := NewTokenCounter("cl100k_base")
	t.Run("Should leave short text unchanged", func(t *testing.T) {
		text := "a short snippet"
		assert.Equal(t, text, counter.Trim(text, 300))
	})
	t.Run("Should trim long text to the budget on word boundaries", func(t *testing.T) {
		long := strings.Repeat("participants will complete questionnaires ", 400)
		trimmed := counter.Trim(long, 50)
		assert.Less(t, len(trimmed), len(long))
		assert.LessOrEqual(t, counter.Count(trimmed), 50)
		assert.NotContains(t, " "+trimmed+" ", "  ")
	})
	t.Run("Should be idempotent", func(t *testing.T) {
		long := strings.Repeat("study drug administration ", 300)
		once := counter.Trim(long, 60)
		assert.Equal(t, once, counter.Trim(once, 60))
	})
	t.Run("Should count empty text as zero", func(t *testing.T) {
		assert.Zero(t, counter.Count(""))
	})
}
