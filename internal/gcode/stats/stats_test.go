package stats_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/state"
	"github.com/amscore/gcodeslots/internal/gcode/stats"
)

func TestFinalizeBuildsColorsAndRanges(t *testing.T) {
	m := state.New()
	m.AdvanceLayer(1)
	m.ChangeTool("T1", 1)
	m.AdvanceLayer(2)
	m.ChangeTool(state.DefaultTool, 20) // back to T0 on layer 2; T1 stays active through layer 3.
	m.AdvanceLayer(3)
	m.Finish()

	result := stats.Finalize(stats.Input{
		FileName:       "case.gcode",
		MachineResult:  m.Snapshot(),
		DeclaredLayers: 4,
	})

	require.Equal(t, 4, result.TotalLayers)

	_, hasT0 := result.ColorByID("T0")
	_, hasT1 := result.ColorByID("T1")
	require.True(t, hasT0)
	require.True(t, hasT1)

	t1, _ := result.ColorByID("T1")
	require.Equal(t, 1, t1.FirstLayer)
	require.Equal(t, 3, t1.LastLayer)
}

func TestFinalizeDedupesIdenticalHex(t *testing.T) {
	m := state.New()
	m.ChangeTool("T1", 1)
	m.AdvanceLayer(1)
	m.Finish()

	result := stats.Finalize(stats.Input{
		FileName:         "dup.gcode",
		MachineResult:    m.Snapshot(),
		ColorDefinitions: []string{"#FF0000", "#FF0000"}, // T0 and T1 share a hex.
	})

	require.NotNil(t, result.DeduplicationInfo)
	require.Equal(t, model.ColorID("T0"), result.DeduplicationInfo.Redirects["T1"])
	require.Contains(t, result.DeduplicationInfo.FreedSlots, model.ColorID("T1"))

	survivor, ok := result.ColorByID("T0")
	require.True(t, ok)
	require.Contains(t, survivor.LayersUsed, 0)
	require.Contains(t, survivor.LayersUsed, 1)

	_, stillPresent := result.ColorByID("T1")
	require.False(t, stillPresent)
}

func TestFinalizeDedupeRedirectsLayerColorMapAndToolChanges(t *testing.T) {
	m := state.New()
	m.ChangeTool("T1", 1)
	m.AdvanceLayer(1)
	m.Finish()

	result := stats.Finalize(stats.Input{
		FileName:         "dup.gcode",
		MachineResult:    m.Snapshot(),
		ColorDefinitions: []string{"#FF0000", "#FF0000"}, // T0 and T1 share a hex.
	})

	require.NotContains(t, result.LayerColorMap[1], model.ColorID("T1"))
	require.Contains(t, result.LayerColorMap[1], model.ColorID("T0"))

	for _, tc := range result.ToolChanges {
		require.NotEqual(t, model.ColorID("T1"), tc.From)
		require.NotEqual(t, model.ColorID("T1"), tc.To)
	}
}

func TestDefaultColorNameLookupExactHex(t *testing.T) {
	lookup := stats.DefaultColorNameLookup()

	name, exact := lookup.Name("#FF0000")
	require.True(t, exact)
	require.Equal(t, "Red", name)

	_, exact = lookup.Name("#123456")
	require.False(t, exact)
}
