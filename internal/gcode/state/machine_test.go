package state_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/state"
)

func TestNewPreSeedsLayerZeroWithDefaultTool(t *testing.T) {
	m := state.New()
	m.Finish()

	snap := m.Snapshot()
	require.Equal(t, []model.ColorID{state.DefaultTool}, snap.LayerColorMap[0])
	require.Equal(t, 0, snap.ColorFirstSeen[state.DefaultTool])
}

func TestAccumulationRulePersistsAcrossLayers(t *testing.T) {
	m := state.New()

	m.ChangeTool("T1", 10)
	m.AdvanceLayer(1)
	m.AdvanceLayer(2)
	m.AdvanceLayer(3)
	m.ChangeTool("T0", 30) // reselect an already-active tool.
	m.AdvanceLayer(4)
	m.ChangeTool("T2", 40)
	m.Finish()

	snap := m.Snapshot()

	require.ElementsMatch(t, []model.ColorID{"T0", "T1"}, snap.LayerColorMap[2])
	require.ElementsMatch(t, []model.ColorID{"T0", "T1"}, snap.LayerColorMap[3])
	require.ElementsMatch(t, []model.ColorID{"T0", "T1", "T2"}, snap.LayerColorMap[4])

	// Reselecting T0 on layer 3 is a real tool change event even though T0
	// was already active from layer 0.
	require.Len(t, snap.ToolChanges, 3)
	require.Equal(t, model.ColorID("T0"), snap.ToolChanges[1].To)
	require.Equal(t, model.ColorID("T1"), snap.ToolChanges[1].From)

	// PrimaryColor on layer 3 is T0 (the reselection), not the last element
	// appended to that layer's color list.
	require.Equal(t, model.ColorID("T0"), snap.LayerDetails[3].PrimaryColor)
	require.Equal(t, model.ColorID("T2"), snap.LayerDetails[4].PrimaryColor)
}

func TestChangeToolIsNoOpWhenAlreadyActive(t *testing.T) {
	m := state.New()

	m.ChangeTool(state.DefaultTool, 5) // already current.
	m.Finish()

	snap := m.Snapshot()
	require.Empty(t, snap.ToolChanges)
}

func TestNormalizeLayerLatchesOneBasedOnFirstObservation(t *testing.T) {
	m := state.New()

	require.Equal(t, 0, m.NormalizeLayer(1))
	require.Equal(t, 4, m.NormalizeLayer(5))

	// A later "1" (e.g. a second object's layer restarting) does not
	// re-trigger the latch.
	require.Equal(t, 0, m.NormalizeLayer(1))
}

func TestNormalizeLayerLatchesZeroBasedOnFirstObservation(t *testing.T) {
	m := state.New()

	require.Equal(t, 0, m.NormalizeLayer(0))
	require.Equal(t, 5, m.NormalizeLayer(5))
}

func TestObserveZIsMonotonic(t *testing.T) {
	m := state.New()

	m.ObserveZ(0.2)
	m.ObserveZ(0.6)
	m.ObserveZ(0.4) // lower Z (e.g. a retraction move) must not regress currentZ.

	require.InDelta(t, 0.6, m.CurrentZ, 1e-9)
}
