package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("AAPL\n\nMSFT\nAAPL\nGOOG\n"), 0644))

	t.Run("dedupes and skips blanks", func(t *testing.T) {
		items, err := ReadItems(path, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, items)
	})

	t.Run("limit caps rows", func(t *testing.T) {
		items, err := ReadItems(path, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL", "MSFT"}, items)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadItems(filepath.Join(t.TempDir(), "nope.csv"), 0)
		assert.Error(t, err)
	})
}

func TestWriteFileAtomic_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "table.csv")

	require.NoError(t, WriteFileAtomic(path, []byte("data")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteLinesAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.txt")
	require.NoError(t, WriteLinesAtomic(path, []string{"a", "b"}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(got))
}
