// Package cache implements the content-addressed file cache for retrieved
// DICOM Part 10 instances: on-disk storage keyed by the most-specific UID of
// a study/series/instance retrieval, with a TTL and a total-size cap enforced
// by LRU eviction.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// indexFileName is the name of the persisted index file at the cache root.
const indexFileName = "cache-index.json"

// Entry is a single cache record: where an instance's bytes live on disk and
// the bookkeeping needed for TTL expiry and LRU eviction.
type Entry struct {
	Hex            string    `json:"hex"`
	Path           string    `json:"path"`
	SizeBytes      int64     `json:"sizeBytes"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	StudyUID       string    `json:"studyUID"`
	SeriesUID      string    `json:"seriesUID,omitempty"`
	InstanceUID    string    `json:"instanceUID,omitempty"`
}

// ValidateResult reports the outcome of cross-checking the index against disk.
type ValidateResult struct {
	Valid   int
	Invalid int
	Orphan  int
}

// Cache is a content-addressed on-disk store of retrieved DICOM Part-10
// payloads with TTL expiry and an LRU size cap. The zero value is not
// usable; construct with New.
type Cache struct {
	root      string
	retention time.Duration
	maxSize   int64
	log       zerolog.Logger

	mu    sync.Mutex
	index map[string]*Entry

	stop chan struct{}
}

// New opens (or creates) a cache rooted at dir, loading any existing index.
// retention is how long an entry survives before it expires on retrieval;
// maxSize is the total byte budget enforced by Enforce after every Store.
func New(dir string, retention time.Duration, maxSize int64, log zerolog.Logger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create root: %w", err)
	}

	c := &Cache{
		root:      dir,
		retention: retention,
		maxSize:   maxSize,
		log:       log,
		index:     make(map[string]*Entry),
		stop:      make(chan struct{}),
	}

	if err := c.loadIndex(); err != nil {
		return nil, err
	}

	return c, nil
}

// Key computes the content-addressed cache key for a study/series/instance
// triple: SHA-256 of the most-specific UID present, hex-encoded. seriesUID
// and instanceUID may be empty.
func Key(studyUID, seriesUID, instanceUID string) string {
	uid := studyUID
	if seriesUID != "" {
		uid = seriesUID
	}
	if instanceUID != "" {
		uid = instanceUID
	}
	sum := sha256.Sum256([]byte(uid))
	return hex.EncodeToString(sum[:])
}

// pathFor returns the on-disk path for a cache key: <root>/<hex[0:2]>/<hex>.dcm
func (c *Cache) pathFor(key string) string {
	return filepath.Join(c.root, key[:2], key+".dcm")
}

// Store writes bytes under the key derived from the most-specific UID,
// updates the index, and enforces the size cap.
func (c *Cache) Store(studyUID, seriesUID, instanceUID string, data []byte) error {
	key := Key(studyUID, seriesUID, instanceUID)
	path := c.pathFor(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: create shard dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cache: write file: %w", err)
	}

	now := time.Now()
	c.mu.Lock()
	c.index[key] = &Entry{
		Hex:            key,
		Path:           path,
		SizeBytes:      int64(len(data)),
		CreatedAt:      now,
		LastAccessedAt: now,
		StudyUID:       studyUID,
		SeriesUID:      seriesUID,
		InstanceUID:    instanceUID,
	}
	err := c.saveIndexLocked()
	c.mu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Msg("cache: failed to persist index after store")
	}

	return c.Enforce()
}

// Retrieve returns the cached bytes for a study/series/instance triple, or
// (nil, false, nil) on a miss (expired, evicted, or never stored). The
// entry's lastAccessedAt is bumped on a hit.
func (c *Cache) Retrieve(studyUID, seriesUID, instanceUID string) ([]byte, bool, error) {
	key := Key(studyUID, seriesUID, instanceUID)

	c.mu.Lock()
	entry, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return nil, false, nil
	}

	if c.retention > 0 && time.Now().After(entry.CreatedAt.Add(c.retention)) {
		delete(c.index, key)
		_ = c.saveIndexLocked()
		c.mu.Unlock()
		//nolint:errcheck // best-effort cleanup of an expired entry's bytes
		os.Remove(entry.Path)
		return nil, false, nil
	}
	path := entry.Path
	c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.mu.Lock()
			delete(c.index, key)
			_ = c.saveIndexLocked()
			c.mu.Unlock()
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: read file: %w", err)
	}

	c.mu.Lock()
	if entry, ok := c.index[key]; ok {
		entry.LastAccessedAt = time.Now()
	}
	c.mu.Unlock()

	return data, true, nil
}

// Has reports whether a live (unexpired, on-disk) entry exists for the
// triple, without reading the payload.
func (c *Cache) Has(studyUID, seriesUID, instanceUID string) bool {
	key := Key(studyUID, seriesUID, instanceUID)

	c.mu.Lock()
	entry, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if c.retention > 0 && time.Now().After(entry.CreatedAt.Add(c.retention)) {
		c.mu.Unlock()
		return false
	}
	path := entry.Path
	c.mu.Unlock()

	_, err := os.Stat(path)
	return err == nil
}

// Stats summarizes the current cache contents for the /status endpoint.
type Stats struct {
	Entries   int
	SizeBytes int64
}

// Stats returns the current entry count and total size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Entries: len(c.index)}
	for _, e := range c.index {
		s.SizeBytes += e.SizeBytes
	}
	return s
}

// Enforce removes expired entries, then evicts least-recently-accessed
// entries until the total size is at or under maxSize (or only the single
// most-recent entry remains, in which case it is kept regardless of size).
func (c *Cache) Enforce() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	freed := int64(0)

	if c.retention > 0 {
		now := time.Now()
		for key, e := range c.index {
			if now.After(e.CreatedAt.Add(c.retention)) {
				//nolint:errcheck // best-effort cleanup, index is the source of truth
				os.Remove(e.Path)
				delete(c.index, key)
				removed++
				freed += e.SizeBytes
			}
		}
	}

	if c.maxSize > 0 {
		for c.totalSizeLocked() > c.maxSize && len(c.index) > 1 {
			key, e := c.lruKeyLocked()
			if key == "" {
				break
			}
			//nolint:errcheck // best-effort cleanup, index is the source of truth
			os.Remove(e.Path)
			delete(c.index, key)
			removed++
			freed += e.SizeBytes
		}
	}

	if removed > 0 {
		c.log.Info().Int("entries", removed).Int64("bytesFreed", freed).Msg("cache: enforce evicted entries")
	}

	return c.saveIndexLocked()
}

func (c *Cache) totalSizeLocked() int64 {
	var total int64
	for _, e := range c.index {
		total += e.SizeBytes
	}
	return total
}

// lruKeyLocked returns the key of the entry with the oldest lastAccessedAt.
func (c *Cache) lruKeyLocked() (string, *Entry) {
	var lruKey string
	var lru *Entry
	for key, e := range c.index {
		if lru == nil || e.LastAccessedAt.Before(lru.LastAccessedAt) {
			lruKey = key
			lru = e
		}
	}
	return lruKey, lru
}

// Validate cross-checks the in-memory index against the filesystem: entries
// whose file is missing are removed (Invalid); files under root not
// referenced by the index are deleted (Orphan).
func (c *Cache) Validate() (ValidateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := ValidateResult{}
	onDisk := make(map[string]bool)

	for key, e := range c.index {
		if _, err := os.Stat(e.Path); err != nil {
			delete(c.index, key)
			result.Invalid++
			continue
		}
		result.Valid++
		onDisk[e.Path] = true
	}

	err := filepath.Walk(c.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if filepath.Base(path) == indexFileName {
			return nil
		}
		if filepath.Ext(path) != ".dcm" {
			return nil
		}
		if !onDisk[path] {
			result.Orphan++
			//nolint:errcheck // sweep is best-effort
			os.Remove(path)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("cache: validate walk: %w", err)
	}

	return result, c.saveIndexLocked()
}

// StartSweep runs Enforce (and logs freed space) on a fixed interval until
// ctx is cancelled.
func (c *Cache) StartSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				if err := c.Enforce(); err != nil {
					c.log.Warn().Err(err).Msg("cache: scheduled sweep failed")
				}
			}
		}
	}()
}

// Close stops any running sweep goroutine.
func (c *Cache) Close() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

// loadIndex reads the persisted index file, if present. A missing file is
// not an error: it means this is a freshly created cache root.
func (c *Cache) loadIndex() error {
	path := filepath.Join(c.root, indexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache: read index: %w", err)
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("cache: decode index: %w", err)
	}

	for _, e := range entries {
		c.index[e.Hex] = e
	}
	return nil
}

// saveIndexLocked rewrites the entire index file. Callers must hold c.mu.
// Acceptable for the entry counts this gateway expects; past ~10^4 entries
// this should switch to append-only journaling.
func (c *Cache) saveIndexLocked() error {
	entries := make([]*Entry, 0, len(c.index))
	for _, e := range c.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Hex < entries[j].Hex })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode index: %w", err)
	}

	path := filepath.Join(c.root, indexFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cache: write index: %w", err)
	}
	return nil
}
