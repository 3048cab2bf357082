// Package cache memoizes parsed G-code analysis results. A result is only
// reusable when the file contents, the parser algorithm, the active
// configuration, and the optimization algorithm all match what produced
// it, so the cache key folds all four together.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/pkg/alg/lru"
	"github.com/amscore/gcodeslots/pkg/safeconv"
)

// parserAlgorithmVersion bumps whenever a parser variant's output shape
// changes in a way that would invalidate previously cached results.
const parserAlgorithmVersion = "v1"

// Key identifies a cached analysis result.
type Key struct {
	FileHash        string
	ParserAlgorithm string
	ConfigHash       string
	OptimizerAlgorithm string
}

// String renders the key as the single string the underlying LRU cache is
// keyed on.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s-%s:%s:%s", k.FileHash, parserAlgorithmVersion, k.ParserAlgorithm, k.ConfigHash, k.OptimizerAlgorithm)
}

// HashFile derives the FileHash component of a Key from raw file bytes.
func HashFile(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashConfig derives the ConfigHash component of a Key from whatever
// configuration values influence parsing/optimization output (slot counts,
// system type, etc.) — callers pass in a stable string rendering of those
// fields, e.g. fmt.Sprintf("%d-%d-%s", slotsPerUnit, unitCount, systemType).
func HashConfig(fields string) string {
	sum := sha256.Sum256([]byte(fields))
	return hex.EncodeToString(sum[:8])
}

// Entry is what gets cached: the parsed stats plus the optimization result
// computed from them, so a cache hit skips both stages.
type Entry struct {
	Stats      *model.GcodeStats
	Optimized  *model.OptimizationResult
	Validation *model.ConstraintValidation
}

// Cache memoizes Entry values keyed by Key, backed by pkg/alg/lru with a
// Bloom pre-filter so a flood of first-time-seen files never takes the
// cache's write lock just to confirm a miss.
type Cache struct {
	inner *lru.Cache[string, Entry]
}

// New creates a Cache holding at most capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}

	return &Cache{
		inner: lru.New[string, Entry](
			lru.WithMaxEntries[string, Entry](capacity),
			lru.WithBloomFilter[string, Entry](func(k string) []byte { return []byte(k) }, safeconv.MustIntToUint(capacity*4)),
		),
	}
}

// Get looks up a previously cached result.
func (c *Cache) Get(key Key) (Entry, bool) {
	return c.inner.Get(key.String())
}

// Put stores a result under key, evicting the least-recently-used entry if
// the cache is full.
func (c *Cache) Put(key Key, entry Entry) {
	c.inner.Put(key.String(), entry)
}

// Clear empties the cache, e.g. after a config reload invalidates every
// outstanding ConfigHash.
func (c *Cache) Clear() {
	c.inner.Clear()
}

// Stats exposes hit/miss/eviction counters for observability.
func (c *Cache) Stats() lru.Stats {
	return c.inner.Stats()
}
