package sparse

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentforge/consentforge/engine/core"
)

var corpus = []string{
	"the study will enroll forty participants over twelve months",
	"adverse events and side effects are monitored for safety",
	"participants attend screening baseline and follow-up visits",
	"the primary objective is to evaluate treatment efficacy",
}

func TestBuild(t *testing.T) {
	t.Run("Should compute corpus statistics", func(t *testing.T) {
		m := Build(corpus, DefaultK1, DefaultB)
		assert.Equal(t, 4, m.N)
		assert.Len(t, m.DocTFs, 4)
		assert.Len(t, m.DocLens, 4)
		assert.Positive(t, m.AvgDL)
		assert.Positive(t, m.IDF["enroll"])
	})
	t.Run("Should fall back to default parameters", func(t *testing.T) {
		m := Build(corpus, 0, 2)
		assert.InDelta(t, DefaultK1, m.K1, 1e-9)
		assert.InDelta(t, DefaultB, m.B, 1e-9)
	})
}

func TestTopK(t *testing.T) {
	m := Build(corpus, DefaultK1, DefaultB)
	t.Run("Should rank the matching document first", func(t *testing.T) {
		ranked := m.TopK("enroll participants months", 4)
		require.NotEmpty(t, ranked)
		assert.Equal(t, 0, ranked[0].Pos)
		for i := 1; i < len(ranked); i++ {
			assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
		}
	})
	t.Run("Should never return non-positive scores", func(t *testing.T) {
		for _, s := range m.TopK("safety visits objective", 10) {
			assert.Greater(t, s.Score, 0.0)
		}
	})
	t.Run("Should return empty for unmatched query", func(t *testing.T) {
		assert.Empty(t, m.TopK("zeppelin quasar", 10))
	})
	t.Run("Should respect k", func(t *testing.T) {
		ranked := m.TopK("participants study", 1)
		assert.Len(t, ranked, 1)
	})
	t.Run("Should lowercase query terms", func(t *testing.T) {
		upper := m.TopK("ENROLL", 4)
		lower := m.TopK("enroll", 4)
		assert.Equal(t, lower, upper)
	})
}

func TestSaveLoad(t *testing.T) {
	t.Run("Should round-trip the model", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bm25.json")
		m := Build(corpus, DefaultK1, DefaultB)
		require.NoError(t, Save(path, m))
		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, m.N, loaded.N)
		assert.InDelta(t, m.AvgDL, loaded.AvgDL, 1e-9)
		assert.Equal(t, m.TopK("participants", 4), loaded.TopK("participants", 4))
	})
	t.Run("Should map missing snapshot to IndexNotFound", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorIs(t, err, core.ErrIndexNotFound)
	})
}
