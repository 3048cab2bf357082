package parser

import "github.com/amscore/gcodeslots/internal/gcode/token"

// phase is the explicit state used by the "fsm" parser variant. It exists
// purely so callers who choose this algorithm get an inspectable transition
// trail during debugging; it never changes what processLine does with a
// given token.Line, so "fsm" produces byte-identical stats to "optimized".
type phase int

const (
	phaseBody phase = iota
	phaseComment
	phaseToolChange
)

// on computes the next phase for a tokenized line. The transition table is
// intentionally small: it mirrors the three line kinds the state machine
// actually reacts to.
func (p phase) on(line token.Line) phase {
	switch line.Kind {
	case token.KindComment:
		return phaseComment
	case token.KindTool:
		return phaseToolChange
	default:
		return phaseBody
	}
}
