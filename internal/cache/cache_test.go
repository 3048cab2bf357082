package cache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/internal/cache"
	"github.com/amscore/gcodeslots/internal/gcode/model"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := cache.New(4)

	key := cache.Key{
		FileHash:           cache.HashFile([]byte("G1 X10\n")),
		ParserAlgorithm:    "optimized",
		ConfigHash:         cache.HashConfig("4-1-magazine"),
		OptimizerAlgorithm: "greedy",
	}

	_, ok := c.Get(key)
	require.False(t, ok)

	entry := cache.Entry{Stats: &model.GcodeStats{FileName: "a.gcode"}}
	c.Put(key, entry)

	got, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, "a.gcode", got.Stats.FileName)
}

func TestDifferentConfigHashMisses(t *testing.T) {
	c := cache.New(4)

	base := cache.Key{
		FileHash:           cache.HashFile([]byte("G1 X10\n")),
		ParserAlgorithm:    "optimized",
		ConfigHash:         cache.HashConfig("4-1-magazine"),
		OptimizerAlgorithm: "greedy",
	}
	c.Put(base, cache.Entry{Stats: &model.GcodeStats{FileName: "a.gcode"}})

	other := base
	other.ConfigHash = cache.HashConfig("6-1-magazine")

	_, ok := c.Get(other)
	require.False(t, ok)
}

func TestEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := cache.New(1)

	k1 := cache.Key{FileHash: "a", ParserAlgorithm: "optimized", ConfigHash: "x", OptimizerAlgorithm: "greedy"}
	k2 := cache.Key{FileHash: "b", ParserAlgorithm: "optimized", ConfigHash: "x", OptimizerAlgorithm: "greedy"}

	c.Put(k1, cache.Entry{Stats: &model.GcodeStats{FileName: "one"}})
	c.Put(k2, cache.Entry{Stats: &model.GcodeStats{FileName: "two"}})

	_, ok := c.Get(k1)
	require.False(t, ok)

	got, ok := c.Get(k2)
	require.True(t, ok)
	require.Equal(t, "two", got.Stats.FileName)
}
