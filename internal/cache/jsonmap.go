// Package cache provides the pipeline's long-lived on-disk JSON caches:
// a mutex-guarded map persisted atomically (tempfile, fsync, rename) and an
// append-only JSONL writer for the token-usage log.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Map is a persistent string-keyed JSON map. Reads take a shared lock,
// writes an exclusive lock; Flush snapshots under the lock and writes the
// snapshot atomically so a concurrent Put is never half-persisted.
type Map[V any] struct {
	mu      sync.RWMutex
	path    string
	entries map[string]V
	dirty   int
	// saveEvery triggers an automatic flush after this many Puts; zero
	// disables auto-flushing.
	saveEvery int
}

// NewMap loads the map at path, starting empty if the file does not exist.
func NewMap[V any](path string, saveEvery int) (*Map[V], error) {
	m := &Map[V]{
		path:      path,
		entries:   make(map[string]V),
		saveEvery: saveEvery,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: read %s", path)
	}
	if err := json.Unmarshal(data, &m.entries); err != nil {
		return nil, eris.Wrapf(err, "cache: parse %s", path)
	}
	return m, nil
}

// Get returns the cached value for key.
func (m *Map[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Put stores value under key and flushes if the auto-save threshold is hit.
func (m *Map[V]) Put(key string, value V) {
	m.mu.Lock()
	m.entries[key] = value
	m.dirty++
	flush := m.saveEvery > 0 && m.dirty >= m.saveEvery
	if flush {
		m.dirty = 0
	}
	m.mu.Unlock()

	if flush {
		if err := m.Flush(); err != nil {
			zap.L().Warn("cache: auto-flush failed", zap.String("path", m.path), zap.Error(err))
		}
	}
}

// Delete removes key.
func (m *Map[V]) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.dirty++
	m.mu.Unlock()
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns a snapshot of all keys.
func (m *Map[V]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Flush persists the current state. The snapshot is taken under the read
// lock; the disk write happens outside it.
func (m *Map[V]) Flush() error {
	m.mu.RLock()
	data, err := json.Marshal(m.entries)
	m.mu.RUnlock()
	if err != nil {
		return eris.Wrapf(err, "cache: marshal %s", m.path)
	}
	return WriteFileAtomic(m.path, data)
}

// WriteFileAtomic writes data to path via a tempfile in the same directory,
// fsync, then rename, so readers never observe a torn file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "cache: mkdir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "cache: create tempfile")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "cache: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "cache: fsync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "cache: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "cache: rename to %s", path)
	}
	return nil
}

// Key16 returns the first 16 hex characters of SHA-256 over the parts joined
// with ':'. This is the enrichment cache key function; it must be identical
// on all platforms.
func Key16(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{':'})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
