package parser

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/internal/gcode/model"
)

var allAlgorithms = []Algorithm{
	AlgorithmOptimized,
	AlgorithmBuffer,
	AlgorithmStream,
	AlgorithmRegex,
	AlgorithmFSM,
	AlgorithmWorker,
	AlgorithmLazy,
}

// s1SingleColorNoMarkers covers spec scenario S1: a file with no layer
// markers at all still produces one layer holding the default tool.
const s1SingleColorNoMarkers = `
G28
G1 X10 Y10 Z0.2 F3000
G1 X20 Y10 E1.2
G1 X20 Y20 E1.2
`

// s2AccumulationAcrossReselection covers spec scenario S2: T1 activates,
// then T0 is reselected on a later layer — both must remain active on every
// subsequent layer (the accumulation rule), and the primary color per layer
// tracks whichever tool was most recently selected even when it re-enters
// an already-active set.
const s2AccumulationAcrossReselection = `
; layer num/total_layer_count: 1/6
G1 Z0.2
T1
; layer num/total_layer_count: 2/6
G1 Z0.4
; layer num/total_layer_count: 3/6
G1 Z0.6
T0
; layer num/total_layer_count: 4/6
G1 Z0.8
T2
; layer num/total_layer_count: 5/6
G1 Z1.0
T1
; layer num/total_layer_count: 6/6
G1 Z1.2
`

func multiChunkFixture() string {
	var b strings.Builder

	tools := []string{"T1", "T2", "T3", "T0", "T2", "T1"}

	for layer := 1; layer <= 400; layer++ {
		b.WriteString("; layer num/total_layer_count: ")
		b.WriteString(strconv.Itoa(layer))
		b.WriteString("/400\n")
		b.WriteString("G1 Z")
		b.WriteString(strconv.Itoa(layer))
		b.WriteString(".0\n")

		if layer%37 == 0 {
			b.WriteString(tools[(layer/37)%len(tools)])
			b.WriteString("\n")
		}
	}

	return b.String()
}

func TestParserEquivalence(t *testing.T) {
	fixtures := map[string]string{
		"s1_no_markers":      s1SingleColorNoMarkers,
		"s2_reselection":     s2AccumulationAcrossReselection,
		"multi_chunk_sweep":  multiChunkFixture(),
	}

	for name, gcode := range fixtures {
		t.Run(name, func(t *testing.T) {
			var reference *model.GcodeStats

			for _, alg := range allAlgorithms {
				result, err := Parse(context.Background(), strings.NewReader(gcode), "fixture.gcode", Options{Algorithm: alg})
				require.NoError(t, err, "algorithm %s", alg)
				require.NotNil(t, result)

				if reference == nil {
					reference = result
					continue
				}

				require.Equal(t, normalizeLayerColorMap(reference.LayerColorMap), normalizeLayerColorMap(result.LayerColorMap),
					"algorithm %s produced a different layerColorMap", alg)

				require.Equal(t, idSet(reference.Colors), idSet(result.Colors),
					"algorithm %s produced a different color id set", alg)

				require.Len(t, result.ToolChanges, len(reference.ToolChanges),
					"algorithm %s produced a different toolChanges count", alg)
			}
		})
	}
}

func normalizeLayerColorMap(m map[int][]model.ColorID) map[int][]model.ColorID {
	out := make(map[int][]model.ColorID, len(m))

	for layer, colors := range m {
		sorted := append([]model.ColorID(nil), colors...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out[layer] = sorted
	}

	return out
}

func idSet(colors []model.Color) map[model.ColorID]struct{} {
	out := make(map[model.ColorID]struct{}, len(colors))
	for _, c := range colors {
		out[c.ID] = struct{}{}
	}

	return out
}
