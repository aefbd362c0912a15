package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentforge/consentforge/engine/core"
)

func TestWriteJSONFile(t *testing.T) {
	t.Run("Should round-trip through write and read", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "state.json")
		in := map[string]int{"a": 1, "b": 2}
		require.NoError(t, core.WriteJSONFile(path, in))
		out := map[string]int{}
		require.NoError(t, core.ReadJSONFile(path, &out))
		assert.Equal(t, in, out)
	})
	t.Run("Should leave no temp file behind", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "state.json")
		require.NoError(t, core.WriteJSONFile(path, []string{"x"}))
		_, err := os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err))
	})
	t.Run("Should surface os.ErrNotExist for missing file", func(t *testing.T) {
		var out map[string]any
		err := core.ReadJSONFile(filepath.Join(t.TempDir(), "absent.json"), &out)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestCloneMap(t *testing.T) {
	t.Run("Should copy entries without sharing storage", func(t *testing.T) {
		src := map[string]string{"k": "v"}
		dst := core.CloneMap(src)
		dst["k"] = "changed"
		assert.Equal(t, "v", src["k"])
	})
	t.Run("Should preserve nil", func(t *testing.T) {
		var src map[string]int
		assert.Nil(t, core.CloneMap(src))
	})
}
