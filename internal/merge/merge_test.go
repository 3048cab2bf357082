package merge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/merge"
)

func sampleStats() *model.GcodeStats {
	return &model.GcodeStats{
		TotalLayers: 4,
		Colors: []model.Color{
			{ID: "T0", FirstLayer: 0, LastLayer: 3, LayersUsed: map[int]struct{}{0: {}, 1: {}, 2: {}, 3: {}}},
			{ID: "T1", FirstLayer: 1, LastLayer: 2, LayersUsed: map[int]struct{}{1: {}, 2: {}}},
		},
		LayerColorMap: map[int][]model.ColorID{
			0: {"T0"},
			1: {"T0", "T1"},
			2: {"T0", "T1"},
			3: {"T0"},
		},
		ToolChanges: []model.ToolChange{
			{Line: 1, Layer: 1, From: "T0", To: "T1"},
			{Line: 2, Layer: 3, From: "T1", To: "T0"},
		},
		LayerDetails: map[int]model.LayerDetail{
			1: {Layer: 1, Colors: []model.ColorID{"T0", "T1"}, PrimaryColor: "T1"},
		},
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	in := sampleStats()

	out, entry, err := merge.Merge(in, "T0", []model.ColorID{"T1"})
	require.NoError(t, err)

	require.Len(t, in.Colors, 2, "input Colors must be untouched")
	require.Equal(t, []model.ColorID{"T0", "T1"}, in.LayerColorMap[1], "input LayerColorMap must be untouched")

	require.Len(t, out.Colors, 1)
	require.Equal(t, []model.ColorID{"T0"}, out.LayerColorMap[1])
	require.Equal(t, model.ColorID("T0"), out.LayerDetails[1].PrimaryColor)
	require.Equal(t, model.ColorID("T0"), out.ToolChanges[0].To)

	require.Equal(t, model.ColorID("T0"), entry.TargetColorID)
	require.Equal(t, []model.ColorID{"T1"}, entry.SourceColorIDs)
	require.Equal(t, 1, entry.FreedSlots)

	merged, ok := out.ColorByID("T0")
	require.True(t, ok)
	require.Empty(t, merged.PartialLayers, "layer 1 had only T0+T1, which now share one id")

	require.Len(t, out.ColorUsageRanges, 1)
	require.Equal(t, model.ColorRange{ColorID: "T0", StartLayer: 0, EndLayer: 3, Continuous: true}, out.ColorUsageRanges[0])
}

func TestMergeRejectsUnknownColors(t *testing.T) {
	in := sampleStats()

	_, _, err := merge.Merge(in, "T9", []model.ColorID{"T1"})
	require.Error(t, err)

	var merr *merge.Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, merge.KindUnknownTarget, merr.Kind)

	_, _, err = merge.Merge(in, "T0", []model.ColorID{"T9"})
	require.ErrorAs(t, err, &merr)
	require.Equal(t, merge.KindUnknownSource, merr.Kind)
}

func TestMergeRejectsSelfMerge(t *testing.T) {
	in := sampleStats()

	_, _, err := merge.Merge(in, "T0", []model.ColorID{"T0"})
	require.Error(t, err)

	var merr *merge.Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, merge.KindTargetEqualsSource, merr.Kind)
}
