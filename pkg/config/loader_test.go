package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentforge/consentforge/pkg/config"
)

func TestLoad(t *testing.T) {
	t.Run("Should load defaults", func(t *testing.T) {
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 1100, cfg.Chunking.Size)
		assert.Equal(t, 120, cfg.Chunking.Overlap)
		assert.InDelta(t, 0.6, cfg.Retrieval.WSparse, 1e-9)
		assert.InDelta(t, 0.4, cfg.Retrieval.WDense, 1e-9)
		assert.Equal(t, 300, cfg.Retrieval.TokenBudget)
		assert.Equal(t, []string{"Purpose", "Procedures", "Risks", "Benefits"}, cfg.Pipeline.DefaultSections)
	})
	t.Run("Should apply environment overrides", func(t *testing.T) {
		t.Setenv("CONSENTFORGE_CHUNKING_SIZE", "800")
		t.Setenv("CONSENTFORGE_RETRIEVAL_K_FINAL", "5")
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 800, cfg.Chunking.Size)
		assert.Equal(t, 5, cfg.Retrieval.KFinal)
	})
	t.Run("Should reject invalid values", func(t *testing.T) {
		t.Setenv("CONSENTFORGE_CHUNKING_SIZE", "0")
		_, err := config.Load()
		require.Error(t, err)
	})
	t.Run("Should carry per-section dense defaults", func(t *testing.T) {
		cfg, err := config.Load()
		require.NoError(t, err)
		purpose, ok := cfg.Retrieval.Sections["Purpose"]
		require.True(t, ok)
		assert.Equal(t, "mmr", purpose.SearchType)
		assert.Equal(t, 6, purpose.K)
		assert.InDelta(t, 0.75, purpose.Lambda, 1e-9)
		assert.Equal(t, 20, purpose.FetchK)
	})
}
