package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantyard/trendrank/internal/oracle"
)

func sampleResponse() oracle.Response {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return oracle.Response{
		"AAPL": {{Date: date, Value: 100}},
		"MSFT": {{Date: date, Value: 40}},
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	key := NewKey(oracle.Group{Items: []oracle.Item{"AAPL", "MSFT"}, Params: oracle.Params{Timeframe: "all"}})

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(key, sampleResponse()))
	require.NoError(t, store.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	resp, ok := reopened.Get(key)
	require.True(t, ok)
	assert.Equal(t, 100.0, resp.Max("AAPL"))
	assert.Equal(t, 40.0, resp.Max("MSFT"))
	assert.Equal(t, 1, reopened.Len())
}

func TestFileStore_PutIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	store, err := OpenFileStore(path)
	require.NoError(t, err)

	key := Key("k")
	require.NoError(t, store.Put(key, sampleResponse()))
	require.NoError(t, store.Put(key, sampleResponse()))
	assert.Equal(t, 1, store.Len())
}

func TestFileStore_MissingSnapshotStartsEmpty(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestFileStore_CorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{ not yaml"), 0644))

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestFileStore_AbandonedTempFileIsIgnored(t *testing.T) {
	// Simulates a kill between temp write and rename: the committed snapshot
	// must still load intact.
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	key := Key("committed")

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(key, sampleResponse()))

	require.NoError(t, os.WriteFile(path+".tmp", []byte("torn half-wri"), 0644))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	_, ok := reopened.Get(key)
	assert.True(t, ok)
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	store, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(Key("k"), sampleResponse()))

	require.NoError(t, store.Clear())
	assert.Equal(t, 0, store.Len())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}
