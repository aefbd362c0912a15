package dense

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder implements embeddings.Embedder and counts provider calls.
type countingEmbedder struct {
	queryCalls int
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	c.queryCalls++
	return []float32{1, 2, 3}, nil
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func TestAdapterCache(t *testing.T) {
	t.Run("Should hit the provider once per distinct query", func(t *testing.T) {
		impl := &countingEmbedder{}
		adapter, err := Wrap(&EmbedderConfig{Model: "test", CacheSize: 8}, impl)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := adapter.EmbedQuery(context.Background(), "same query")
			require.NoError(t, err)
		}
		assert.Equal(t, 1, impl.queryCalls)
		_, err = adapter.EmbedQuery(context.Background(), "other query")
		require.NoError(t, err)
		assert.Equal(t, 2, impl.queryCalls)
	})
	t.Run("Should not let callers mutate cached vectors", func(t *testing.T) {
		impl := &countingEmbedder{}
		adapter, err := Wrap(&EmbedderConfig{Model: "test", CacheSize: 8}, impl)
		require.NoError(t, err)
		first, err := adapter.EmbedQuery(context.Background(), "q")
		require.NoError(t, err)
		first[0] = 99
		second, err := adapter.EmbedQuery(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, float32(1), second[0])
	})
	t.Run("Should work without a cache", func(t *testing.T) {
		impl := &countingEmbedder{}
		adapter, err := Wrap(&EmbedderConfig{Model: "test"}, impl)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			_, err := adapter.EmbedQuery(context.Background(), "q")
			require.NoError(t, err)
		}
		assert.Equal(t, 2, impl.queryCalls)
	})
	t.Run("Should reject a nil implementation", func(t *testing.T) {
		_, err := Wrap(&EmbedderConfig{Model: "test"}, nil)
		assert.Error(t, err)
	})
}
