package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/internal/cache"
)

func newTestCache(t *testing.T, retention time.Duration, maxSize int64) *cache.Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := cache.New(dir, retention, maxSize, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestKeyIsStableAndUsesMostSpecificUID(t *testing.T) {
	studyKey := cache.Key("1.2.3", "", "")
	sameStudyKey := cache.Key("1.2.3", "", "")
	assert.Equal(t, studyKey, sameStudyKey)

	seriesKey := cache.Key("1.2.3", "1.2.3.4", "")
	assert.NotEqual(t, studyKey, seriesKey)

	instanceKey := cache.Key("1.2.3", "1.2.3.4", "1.2.3.4.5")
	assert.NotEqual(t, seriesKey, instanceKey)

	// Most-specific UID wins: the instance-level key depends only on the
	// instance UID, not the study/series UIDs it was derived alongside.
	assert.Equal(t, instanceKey, cache.Key("9.9.9", "8.8.8", "1.2.3.4.5"))
}

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	c := newTestCache(t, 0, 0)

	payload := []byte("DICM-fake-bytes")
	err := c.Store("1.2.3", "1.2.3.4", "1.2.3.4.5", payload)
	require.NoError(t, err)

	assert.True(t, c.Has("1.2.3", "1.2.3.4", "1.2.3.4.5"))

	got, ok, err := c.Retrieve("1.2.3", "1.2.3.4", "1.2.3.4.5")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestRetrieveMissReturnsFalseNotError(t *testing.T) {
	c := newTestCache(t, 0, 0)

	got, ok, err := c.Retrieve("1.2.3", "", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestEntryExpiresAfterRetention(t *testing.T) {
	c := newTestCache(t, 10*time.Millisecond, 0)

	require.NoError(t, c.Store("1.2.3", "", "", []byte("data")))
	assert.True(t, c.Has("1.2.3", "", ""))

	time.Sleep(30 * time.Millisecond)

	assert.False(t, c.Has("1.2.3", "", ""))
	_, ok, err := c.Retrieve("1.2.3", "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnforceEvictsLeastRecentlyAccessed(t *testing.T) {
	c := newTestCache(t, 0, 15)

	require.NoError(t, c.Store("1.2.1", "", "", []byte("aaaaaaaaaa"))) // 10 bytes
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Store("1.2.2", "", "", []byte("bbbbbbbbbb"))) // 10 bytes, triggers eviction

	stats := c.Stats()
	assert.LessOrEqual(t, stats.SizeBytes, int64(20))

	// The older, less-recently-touched entry should be the one evicted.
	assert.False(t, c.Has("1.2.1", "", ""))
	assert.True(t, c.Has("1.2.2", "", ""))
}

func TestValidateRemovesOrphanFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir, 0, 0, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Store("1.2.3", "", "", []byte("tracked")))

	orphanDir := filepath.Join(dir, "ff")
	require.NoError(t, os.MkdirAll(orphanDir, 0o755))
	orphanPath := filepath.Join(orphanDir, "ffdeadbeef.dcm")
	require.NoError(t, os.WriteFile(orphanPath, []byte("untracked"), 0o644))

	result, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Valid)
	assert.Equal(t, 0, result.Invalid)
	assert.Equal(t, 1, result.Orphan)

	_, statErr := os.Stat(orphanPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestValidateRemovesMissingFileEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir, 0, 0, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Store("1.2.3", "", "", []byte("tracked")))
	key := cache.Key("1.2.3", "", "")
	require.NoError(t, os.Remove(filepath.Join(dir, key[:2], key+".dcm")))

	result, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Valid)
	assert.Equal(t, 1, result.Invalid)

	assert.False(t, c.Has("1.2.3", "", ""))
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	c1, err := cache.New(dir, 0, 0, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c1.Store("1.2.3", "1.2.3.4", "", []byte("persisted")))

	c2, err := cache.New(dir, 0, 0, zerolog.Nop())
	require.NoError(t, err)

	got, ok, err := c2.Retrieve("1.2.3", "1.2.3.4", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("persisted"), got)
}

func TestStartSweepEnforcesOnInterval(t *testing.T) {
	c := newTestCache(t, 10*time.Millisecond, 0)
	require.NoError(t, c.Store("1.2.3", "", "", []byte("data")))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.StartSweep(ctx, 20*time.Millisecond)
	defer c.Close()

	time.Sleep(80 * time.Millisecond)

	stats := c.Stats()
	assert.Equal(t, 0, stats.Entries)
}
