// Package model defines the shared vocabulary types produced and consumed by
// every gcodeslots component: colors, layer details, tool-change events,
// parsed statistics, slot assignments, and optimization results. It holds no
// behavior beyond small derived-value helpers; components that compute these
// values live in their own packages.
package model

import "time"

// ColorID is a tool handle, conventionally "T0".."T7".
type ColorID string

// Color is a logical material channel tracked across a print.
//
// Invariant: FirstLayer <= LastLayer, and every layer in LayersUsed lies in
// [0, TotalLayers) of the owning GcodeStats.
type Color struct {
	ID             ColorID
	Name           string
	Hex            string // "#RRGGBB", empty when unknown.
	FirstLayer     int
	LastLayer      int
	LayersUsed     map[int]struct{} // Layers on which this color deposited material.
	PartialLayers  map[int]struct{} // Layers on which the color appeared but not alone.
	TotalLayers    int              // Context for percentage derivation.
}

// LayerCount returns the number of layers this color was used on.
func (c Color) LayerCount() int {
	return len(c.LayersUsed)
}

// UsagePercentage returns LayerCount() / TotalLayers, 0 when TotalLayers is 0.
func (c Color) UsagePercentage() float64 {
	if c.TotalLayers == 0 {
		return 0
	}

	return float64(c.LayerCount()) / float64(c.TotalLayers)
}

// SortedLayersUsed returns LayersUsed as an ascending slice.
func (c Color) SortedLayersUsed() []int {
	return sortedIntSet(c.LayersUsed)
}

func sortedIntSet(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}

	insertionSort(out)

	return out
}

// insertionSort sorts small int slices in place without pulling in "sort"
// at every call site that just needs a handful of layer indices.
func insertionSort(s []int) {
	for i := 1; i < len(s); i++ {
		v := s[i]

		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}

		s[j+1] = v
	}
}

// ToolChange is an append-only event recording a tool activation.
type ToolChange struct {
	Line  int
	Layer int
	Z     float64
	From  ColorID
	To    ColorID
}

// LayerDetail is the per-layer record built by the state machine and
// finalized by the statistics finalizer.
type LayerDetail struct {
	Layer            int
	Colors           []ColorID // Ordered by activation order.
	PrimaryColor     ColorID
	ToolChangeCount  int
	ToolChanges      []ToolChange
}

// ColorRange is a contiguous layer interval on which a color appears.
type ColorRange struct {
	ColorID    ColorID
	StartLayer int
	EndLayer   int
	Continuous bool
}

// SlicerInfo carries best-effort slicer banner metadata.
type SlicerInfo struct {
	Software        string
	Version         string
	RawColorDefs    []string // Raw hex/name tokens from extruder_colour / filament_colour.
}

// FilamentEstimate is the per-tool filament usage the slicer reported.
type FilamentEstimate struct {
	LengthMM float64
	WeightG  float64
}

// BundleMetadata carries fields merged in from a 3MF/ZIP project manifest.
type BundleMetadata struct {
	FilamentColors []string
	FilamentIDs    []string
	BedType        string
	NozzleDiameter float64
	Version        string
	IsSeqPrint     bool
	BBoxObjects    []BoundingBox
}

// BoundingBox is an object's axis-aligned bounding box in bundle metadata.
type BoundingBox struct {
	ObjectID   string
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// DeduplicationInfo records the hex-collapsing the finalizer performed.
type DeduplicationInfo struct {
	// Redirects maps an eliminated tool id to the surviving id it was folded into.
	Redirects map[ColorID]ColorID
	// FreedSlots lists tool ids that no longer need their own slot after dedup.
	FreedSlots []ColorID
}

// GcodeStats is the parser's output aggregate.
type GcodeStats struct {
	FileName    string
	FileSize    int64
	TotalLayers int
	TotalHeight float64

	Colors           []Color // Order-stable by first appearance; zero-usage colors filtered out.
	ToolChanges      []ToolChange
	LayerColorMap    map[int][]ColorID
	ColorUsageRanges []ColorRange
	LayerDetails     map[int]LayerDetail

	SlicerInfo        *SlicerInfo
	FilamentEstimates map[ColorID]FilamentEstimate
	UsageStatsNote     string
	PrintTimeString   string
	PrintTimeSeconds   int
	PrintCost          float64

	Is3mfFile      bool
	BundleMetadata *BundleMetadata

	DeduplicationInfo *DeduplicationInfo

	ParserWarnings []string
	ParseTime      time.Duration
	RawContent     []byte // Populated lazily by downstream consumers only; nil by default.
}

// ColorByID returns the color with the given id, if present.
func (s *GcodeStats) ColorByID(id ColorID) (Color, bool) {
	for _, c := range s.Colors {
		if c.ID == id {
			return c, true
		}
	}

	return Color{}, false
}

// SystemType distinguishes a multi-slot magazine from a one-slot-per-unit toolhead.
type SystemType string

const (
	// SystemMagazine is a multi-slot unit where the last slot may be shared.
	SystemMagazine SystemType = "magazine"
	// SystemToolhead is a toolhead system where each unit is exactly one slot.
	SystemToolhead SystemType = "toolhead"
)

// SystemConfiguration describes the physical hardware the optimizer targets.
type SystemConfiguration struct {
	Type           SystemType
	UnitCount      int
	SlotsPerUnit   int
	SecondsPerSwap int
}

// TotalSlots returns UnitCount * SlotsPerUnit.
func (c SystemConfiguration) TotalSlots() int {
	return c.UnitCount * c.SlotsPerUnit
}

// SlotAssignment is a single hardware slot's plan.
type SlotAssignment struct {
	UnitIndex   int
	SlotIndex   int
	CompositeID string
	Colors      []ColorID
	IsPermanent bool
}

// ConfidenceTriple scores a manual swap's three independent confidence axes.
type ConfidenceTriple struct {
	Timing      int // 0-100, higher = narrower/riskier window handled with more confidence.
	Necessity   int // 0-100, how necessary the swap is.
	UserControl int // 0-100, how much slack the user has in timing it.
}

// ManualSwap is a scheduled filament change at a non-permanent slot.
type ManualSwap struct {
	UnitIndex       int
	SlotIndex       int
	FromColor       ColorID
	ToColor         ColorID
	OptimalLayer    int
	EarliestLayer   int
	LatestLayer     int
	PauseStart      int
	PauseEnd        int
	ZAtOptimalLayer float64
	Reason          string
	FlexibilityScore int
	Confidence      ConfidenceTriple
}

// OptimizationResult is the slot optimizer's output.
type OptimizationResult struct {
	SlotAssignments     []SlotAssignment
	ManualSwaps         []ManualSwap
	RequiredSlots       int
	TotalSwaps          int
	EstimatedTimeSaved  time.Duration
	ShareableColorPairs [][2]ColorID
	Configuration       SystemConfiguration
}

// ConstraintViolation flags a layer whose simultaneous color count exceeds
// the slot budget.
type ConstraintViolation struct {
	Layer              int
	SimultaneousColors []ColorID
	MinMergesNeeded    int
	SuggestedMerges    [][2]ColorID
}

// ConstraintValidation is the full result of a feasibility pass.
type ConstraintValidation struct {
	HasViolations    bool
	Violations       []ConstraintViolation
	TotalImpossible  int
	FirstViolation   int
	LastViolation    int
	WorstSimultaneity int
}

// MergeHistoryEntry records one completed merge for display and for the
// history manager's snapshot metadata.
type MergeHistoryEntry struct {
	TargetColorID  ColorID
	SourceColorIDs []ColorID
	FreedSlots     int
	Description    string
}
