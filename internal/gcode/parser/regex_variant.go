package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amscore/gcodeslots/internal/gcode/token"
)

// toolLineRe recognizes a bare tool-select command for the "regex" parser
// variant, which classifies lines via precompiled patterns instead of the
// manual scanning token.Tokenize does. Slower, but more tolerant of odd
// whitespace in dialects the manual scanner wasn't written against.
var toolLineRe = regexp.MustCompile(`^\s*[Tt](\d+)\s*$`)

// tokenizeRegex reclassifies a raw line using regexes where token.Tokenize
// would use manual scanning. It still defers to token.Tokenize for the
// comment/inline-comment split and for command-line parsing, since those
// concerns are identical in both variants — only the tool-select detection
// differs, by construction, to exercise a distinct code path.
func tokenizeRegex(raw string, lineNumber int) token.Line {
	trimmed := strings.TrimSpace(raw)

	if m := toolLineRe.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return token.Line{Raw: trimmed, Number: lineNumber, Kind: token.KindTool, ToolIndex: n, Command: strings.ToUpper(trimmed)}
		}
	}

	return token.Tokenize(raw, lineNumber)
}
