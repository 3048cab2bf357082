package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/optimizer"
)

func color(id model.ColorID, first, last, total int) model.Color {
	used := map[int]struct{}{}
	for l := first; l <= last; l++ {
		used[l] = struct{}{}
	}

	return model.Color{ID: id, FirstLayer: first, LastLayer: last, LayersUsed: used, TotalLayers: total}
}

func TestGreedyPinsHighestCoverageColorsPermanently(t *testing.T) {
	stats := &model.GcodeStats{
		Colors: []model.Color{
			color("T0", 0, 99, 100),  // used the whole print: highest priority.
			color("T1", 0, 9, 100),   // brief early burst.
			color("T2", 20, 29, 100), // brief mid burst.
			color("T3", 90, 99, 100), // brief late burst.
		},
		ColorUsageRanges: []model.ColorRange{
			{ColorID: "T0", StartLayer: 0, EndLayer: 99, Continuous: true},
			{ColorID: "T1", StartLayer: 0, EndLayer: 9, Continuous: true},
			{ColorID: "T2", StartLayer: 20, EndLayer: 29, Continuous: true},
			{ColorID: "T3", StartLayer: 90, EndLayer: 99, Continuous: true},
		},
	}

	cfg := model.SystemConfiguration{Type: model.SystemMagazine, UnitCount: 1, SlotsPerUnit: 2, SecondsPerSwap: 30}

	result := optimizer.Optimize(stats, optimizer.Options{Configuration: cfg})

	var permanentIDs []model.ColorID
	var sharedCount int

	for _, sa := range result.SlotAssignments {
		if sa.IsPermanent {
			permanentIDs = append(permanentIDs, sa.Colors[0])
		} else {
			sharedCount = len(sa.Colors)
		}
	}

	require.Equal(t, []model.ColorID{"T0"}, permanentIDs)
	require.Equal(t, 3, sharedCount)
	require.Len(t, result.ManualSwaps, 2)
	require.Greater(t, result.EstimatedTimeSaved.Seconds(), 0.0)

	first := result.ManualSwaps[0]
	require.Equal(t, model.ColorID("T1"), first.FromColor)
	require.Equal(t, model.ColorID("T2"), first.ToColor)
	require.Equal(t, 20, first.OptimalLayer) // toColor.firstLayer exactly.
	require.Equal(t, 10, first.EarliestLayer) // fromColor.lastLayer + 1.
	require.Equal(t, 20, first.LatestLayer)
	require.Equal(t, first.OptimalLayer-1, first.PauseStart)
	require.Equal(t, first.OptimalLayer, first.PauseEnd)
	require.Equal(t, "color T2 starts at layer 20", first.Reason)
}

func TestGreedyNoSharedSlotWhenEverythingFits(t *testing.T) {
	stats := &model.GcodeStats{
		Colors: []model.Color{
			color("T0", 0, 49, 50),
			color("T1", 0, 49, 50),
		},
	}

	cfg := model.SystemConfiguration{Type: model.SystemMagazine, UnitCount: 1, SlotsPerUnit: 4}

	result := optimizer.Optimize(stats, optimizer.Options{Configuration: cfg})

	require.Empty(t, result.ManualSwaps)
	for _, sa := range result.SlotAssignments {
		require.True(t, sa.IsPermanent)
	}
}
