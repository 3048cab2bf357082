// Package optimizer implements the slot-assignment planner: rank colors by
// how much they'd benefit from a permanent slot, pin as many as the
// hardware allows, and schedule manual swaps with timing windows for
// whatever's left over.
package optimizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/pkg/mathutil"
)

// Algorithm names the optimization strategy (the optimizationAlgorithm config knob).
type Algorithm string

const (
	// AlgorithmGreedy pins the highest-priority colors permanently and
	// shares the remaining slot(s) among the rest. It is the default.
	AlgorithmGreedy Algorithm = "greedy"
)

// Options configures a single optimization run.
type Options struct {
	Algorithm     Algorithm // "" uses AlgorithmGreedy.
	Configuration model.SystemConfiguration
}

// Strategy is the pluggable scoring/assignment interface so alternative
// algorithms can be registered without changing callers.
type Strategy interface {
	Optimize(stats *model.GcodeStats, cfg model.SystemConfiguration) model.OptimizationResult
}

var strategies = map[Algorithm]Strategy{
	AlgorithmGreedy: greedyStrategy{},
}

// Optimize runs the configured strategy over stats.
func Optimize(stats *model.GcodeStats, opts Options) model.OptimizationResult {
	alg := opts.Algorithm
	if alg == "" {
		alg = AlgorithmGreedy
	}

	strategy, ok := strategies[alg]
	if !ok {
		strategy = greedyStrategy{}
	}

	return strategy.Optimize(stats, opts.Configuration)
}

type greedyStrategy struct{}

// priorityScore combines coverage, contiguity, and span so that colors used
// broadly, continuously, and across a long range of layers earn a permanent
// slot ahead of colors used briefly or in scattered bursts.
func priorityScore(c model.Color, continuous map[model.ColorID]bool) float64 {
	coverage := c.UsagePercentage()

	span := float64(c.LastLayer-c.FirstLayer+1) / float64(mathutil.Max(c.TotalLayers, 1))

	contiguityBonus := 0.0
	if continuous[c.ID] {
		contiguityBonus = 0.15
	}

	return coverage*0.6 + span*0.25 + contiguityBonus
}

func (greedyStrategy) Optimize(stats *model.GcodeStats, cfg model.SystemConfiguration) model.OptimizationResult {
	totalSlots := cfg.TotalSlots()
	if totalSlots <= 0 {
		totalSlots = 1
	}

	continuous := map[model.ColorID]bool{}
	for _, r := range stats.ColorUsageRanges {
		if r.Continuous {
			continuous[r.ColorID] = true
		}
	}

	ranked := make([]model.Color, len(stats.Colors))
	copy(ranked, stats.Colors)

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := priorityScore(ranked[i], continuous), priorityScore(ranked[j], continuous)
		if si != sj {
			return si > sj
		}

		if ranked[i].FirstLayer != ranked[j].FirstLayer {
			return ranked[i].FirstLayer < ranked[j].FirstLayer
		}

		return ranked[i].ID < ranked[j].ID
	})

	permanentCount := totalSlots - 1
	if len(ranked) <= totalSlots {
		permanentCount = len(ranked)
	}
	if permanentCount < 0 {
		permanentCount = 0
	}
	if permanentCount > len(ranked) {
		permanentCount = len(ranked)
	}

	permanent := ranked[:permanentCount]
	shared := ranked[permanentCount:]

	result := model.OptimizationResult{
		Configuration: cfg,
		RequiredSlots: mathutil.Min(len(ranked), totalSlots),
	}

	unitSize := cfg.SlotsPerUnit
	if unitSize <= 0 {
		unitSize = 1
	}

	for i, c := range permanent {
		unit, slot := divmod(i, unitSize)
		result.SlotAssignments = append(result.SlotAssignments, model.SlotAssignment{
			UnitIndex:   unit,
			SlotIndex:   slot,
			CompositeID: string(c.ID),
			Colors:      []model.ColorID{c.ID},
			IsPermanent: true,
		})
	}

	if len(shared) == 0 {
		return result
	}

	sharedUnit, sharedSlot := divmod(permanentCount, unitSize)

	sharedIDs := make([]model.ColorID, len(shared))
	for i, c := range shared {
		sharedIDs[i] = c.ID
	}

	result.SlotAssignments = append(result.SlotAssignments, model.SlotAssignment{
		UnitIndex:   sharedUnit,
		SlotIndex:   sharedSlot,
		CompositeID: "shared",
		Colors:      sharedIDs,
		IsPermanent: false,
	})

	// Order the shared colors by first appearance so swaps are scheduled in
	// the order the print actually needs them.
	sort.Slice(shared, func(i, j int) bool { return shared[i].FirstLayer < shared[j].FirstLayer })

	swaps := scheduleSwaps(shared, sharedUnit, sharedSlot, cfg, stats.ToolChanges)
	result.ManualSwaps = swaps
	result.TotalSwaps = len(swaps)

	if cfg.SecondsPerSwap > 0 {
		// Every shared color after the first one loaded needs exactly one
		// swap in; estimate the time a dedicated slot per color would have
		// saved by avoiding all of them.
		result.EstimatedTimeSaved = time.Duration(len(swaps)) * time.Duration(cfg.SecondsPerSwap) * time.Second
	}

	result.ShareableColorPairs = shareablePairs(shared)

	return result
}

func divmod(i, size int) (unit, slot int) {
	return i / size, i % size
}

// scheduleSwaps emits one ManualSwap per shared color after the first,
// loaded into the shared slot in time for the next color's own first use,
// with a window running from the previous occupant's last use to this
// color's own first use.
func scheduleSwaps(shared []model.Color, unit, slot int, cfg model.SystemConfiguration, toolChanges []model.ToolChange) []model.ManualSwap {
	if len(shared) < 2 {
		return nil
	}

	zAtFirstUse := firstActivationZ(toolChanges)

	swaps := make([]model.ManualSwap, 0, len(shared)-1)

	for i := 1; i < len(shared); i++ {
		prev := shared[i-1]
		next := shared[i]

		earliest := prev.LastLayer + 1
		latest := next.FirstLayer
		optimal := next.FirstLayer

		window := latest - earliest
		flexibility := clampScore(window * 10)

		swaps = append(swaps, model.ManualSwap{
			UnitIndex:        unit,
			SlotIndex:        slot,
			FromColor:        prev.ID,
			ToColor:          next.ID,
			OptimalLayer:     optimal,
			EarliestLayer:    earliest,
			LatestLayer:      latest,
			PauseStart:       optimal - 1,
			PauseEnd:         optimal,
			ZAtOptimalLayer:  zAtFirstUse[next.ID],
			Reason:           fmt.Sprintf("color %s starts at layer %d", next.ID, next.FirstLayer),
			FlexibilityScore: flexibility,
			Confidence: model.ConfidenceTriple{
				Timing:      clampScore(100 - window*5),
				Necessity:   100,
				UserControl: flexibility,
			},
		})
	}

	return swaps
}

// firstActivationZ maps each color to the Z height recorded at its earliest
// tool-change activation, so a manual swap can report the Z it will land on.
func firstActivationZ(toolChanges []model.ToolChange) map[model.ColorID]float64 {
	out := map[model.ColorID]float64{}

	for _, tc := range toolChanges {
		if _, ok := out[tc.To]; !ok {
			out[tc.To] = tc.Z
		}
	}

	return out
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}

	return v
}

// shareablePairs lists each consecutive pair of colors in the shared slot's
// first-appearance order, i.e. the colors that hand the slot over to one
// another. It does not check whether the two colors' layer ranges overlap.
func shareablePairs(shared []model.Color) [][2]model.ColorID {
	var pairs [][2]model.ColorID

	for i := 1; i < len(shared); i++ {
		pairs = append(pairs, [2]model.ColorID{shared[i-1].ID, shared[i].ID})
	}

	return pairs
}
