// Package state implements the layer/tool state machine — the single most
// load-bearing invariant in the system: once a tool has been activated, it
// accumulates onto every later layer for the rest of the stream; a later tool
// change adds another tool but never removes one. See Machine.AdvanceLayer
// and Machine.ChangeTool.
package state

import "github.com/amscore/gcodeslots/internal/gcode/model"

// DefaultTool is the tool every stream implicitly starts on before any
// explicit Tk command.
const DefaultTool = model.ColorID("T0")

// Machine holds the mutable parse state for a single streaming pass. It is
// not safe for concurrent use; the "worker" parser variant runs one Machine
// per chunk and merges results afterward.
type Machine struct {
	CurrentLayer int
	CurrentTool  model.ColorID
	CurrentZ     float64

	// activeTools preserves activation order so it can be carried forward
	// onto each new layer's color list.
	activeTools     []model.ColorID
	activeToolSet   map[model.ColorID]struct{}

	layerColorMap map[int][]model.ColorID
	layerDetails  map[int]model.LayerDetail

	colorFirstSeen map[model.ColorID]int
	colorLastSeen  map[model.ColorID]int

	toolChanges      []model.ToolChange
	currentLayerToolChanges []model.ToolChange

	// layerBaseKnown/layerIsOneBased latch the numbering scheme (1-based vs
	// 0-based) on the first layer-marker comment observed and never
	// re-evaluate it.
	layerBaseKnown  bool
	layerIsOneBased bool
}

// New creates a Machine pre-seeded with layer 0 holding DefaultTool, so that
// files with no layer markers at all still produce a one-layer result.
func New() *Machine {
	m := &Machine{
		CurrentTool:    DefaultTool,
		activeTools:    []model.ColorID{DefaultTool},
		activeToolSet:  map[model.ColorID]struct{}{DefaultTool: {}},
		layerColorMap:  map[int][]model.ColorID{0: {DefaultTool}},
		layerDetails:   map[int]model.LayerDetail{},
		colorFirstSeen: map[model.ColorID]int{DefaultTool: 0},
		colorLastSeen:  map[model.ColorID]int{DefaultTool: 0},
	}

	m.layerDetails[0] = model.LayerDetail{Layer: 0, Colors: []model.ColorID{DefaultTool}}

	return m
}

// NewChunk creates a Machine for a sub-range of a larger stream, used by the
// "worker" parser variant. entryTool
// is the tool that was active immediately before this chunk begins, so a
// redundant Tk reselecting it is correctly treated as a no-op rather than a
// spurious tool change. entryLayer is the layer number active at the chunk's
// first line. oneBased carries the numbering-base decision already latched
// by the pre-scan, so this chunk's own NormalizeLayer calls reuse it instead
// of re-latching on the first marker it happens to see (which, for any
// chunk past the first, is never the file's true first marker). Unlike New,
// no tool is pre-seeded: the entry layer starts with an empty color list,
// and the caller merges each chunk's locally-accumulated colors with the
// tools already active from prior chunks.
func NewChunk(entryTool model.ColorID, entryLayer int, oneBased bool) *Machine {
	m := &Machine{
		CurrentLayer:    entryLayer,
		CurrentTool:     entryTool,
		activeTools:     []model.ColorID{},
		activeToolSet:   map[model.ColorID]struct{}{},
		layerColorMap:   map[int][]model.ColorID{},
		layerDetails:    map[int]model.LayerDetail{},
		colorFirstSeen:  map[model.ColorID]int{},
		colorLastSeen:   map[model.ColorID]int{},
		layerBaseKnown:  true,
		layerIsOneBased: oneBased,
	}

	m.layerColorMap[entryLayer] = []model.ColorID{}
	m.layerDetails[entryLayer] = model.LayerDetail{Layer: entryLayer, Colors: m.layerColorMap[entryLayer]}

	return m
}

// ObserveZ folds a movement command's Z parameter into the monotonic
// current height: CurrentZ only ever increases, via max.
func (m *Machine) ObserveZ(z float64) {
	if z > m.CurrentZ {
		m.CurrentZ = z
	}
}

// NormalizeLayer converts a raw G-code layer number to an internal 0-based
// index, latching the numbering-base detection on first use.
func (m *Machine) NormalizeLayer(raw int) int {
	if !m.layerBaseKnown {
		m.layerIsOneBased = raw == 1
		m.layerBaseKnown = true
	}

	if m.layerIsOneBased {
		return raw - 1
	}

	return raw
}

// AdvanceLayer finalizes the previous layer, moves to the new one, and
// carries every active tool forward. No-op if newLayer equals the current
// layer.
func (m *Machine) AdvanceLayer(newLayer int) {
	if newLayer == m.CurrentLayer {
		return
	}

	m.finalizeLayer(m.CurrentLayer)

	m.CurrentLayer = newLayer

	carried := make([]model.ColorID, len(m.activeTools))
	copy(carried, m.activeTools)

	m.layerColorMap[newLayer] = carried
	m.layerDetails[newLayer] = model.LayerDetail{Layer: newLayer, Colors: carried}
	m.currentLayerToolChanges = nil

	for _, tool := range carried {
		m.colorLastSeen[tool] = newLayer
	}
}

func (m *Machine) finalizeLayer(layer int) {
	detail, ok := m.layerDetails[layer]
	if !ok {
		return
	}

	detail.PrimaryColor = m.CurrentTool
	detail.ToolChangeCount = len(m.currentLayerToolChanges)
	detail.ToolChanges = m.currentLayerToolChanges
	m.layerDetails[layer] = detail
}

// ChangeTool activates a tool, appending it to the layer's active set. It is
// a no-op when to equals the currently active tool (the accumulation rule
// only fires on an actual change).
func (m *Machine) ChangeTool(to model.ColorID, line int) {
	if to == m.CurrentTool {
		return
	}

	change := model.ToolChange{
		Line:  line,
		Layer: m.CurrentLayer,
		Z:     m.CurrentZ,
		From:  m.CurrentTool,
		To:    to,
	}

	m.toolChanges = append(m.toolChanges, change)
	m.currentLayerToolChanges = append(m.currentLayerToolChanges, change)

	m.CurrentTool = to

	if _, seen := m.activeToolSet[to]; !seen {
		m.activeToolSet[to] = struct{}{}
		m.activeTools = append(m.activeTools, to)
	}

	m.appendLayerColorIfAbsent(to)

	if _, ok := m.colorFirstSeen[to]; !ok {
		m.colorFirstSeen[to] = m.CurrentLayer
	}

	m.colorLastSeen[to] = m.CurrentLayer
}

func (m *Machine) appendLayerColorIfAbsent(tool model.ColorID) {
	colors := m.layerColorMap[m.CurrentLayer]

	for _, c := range colors {
		if c == tool {
			return
		}
	}

	m.layerColorMap[m.CurrentLayer] = append(colors, tool)

	detail := m.layerDetails[m.CurrentLayer]
	detail.Colors = m.layerColorMap[m.CurrentLayer]
	m.layerDetails[m.CurrentLayer] = detail
}

// Finish finalizes the last open layer. Callers must invoke this exactly
// once after the stream is exhausted.
func (m *Machine) Finish() {
	m.finalizeLayer(m.CurrentLayer)
}

// Result bundles the raw state for the statistics finalizer to consume.
type Result struct {
	LayerColorMap  map[int][]model.ColorID
	LayerDetails   map[int]model.LayerDetail
	ToolChanges    []model.ToolChange
	ColorFirstSeen map[model.ColorID]int
	ColorLastSeen  map[model.ColorID]int
	CurrentZ       float64
}

// Snapshot returns the raw accumulated state. Safe to call only after Finish.
func (m *Machine) Snapshot() Result {
	return Result{
		LayerColorMap:  m.layerColorMap,
		LayerDetails:   m.layerDetails,
		ToolChanges:    m.toolChanges,
		ColorFirstSeen: m.colorFirstSeen,
		ColorLastSeen:  m.colorLastSeen,
		CurrentZ:       m.CurrentZ,
	}
}
