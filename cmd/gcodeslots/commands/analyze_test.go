package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/cmd/gcodeslots/commands"
)

func TestAnalyzeCommand_Flags(t *testing.T) {
	t.Parallel()

	cmd := commands.NewAnalyzeCommand()

	for _, name := range []string{"config", "algorithm", "no-color"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(name)
			require.NotNil(t, flag, "flag --%s should be registered", name)
		})
	}
}

func TestAnalyzeCommand_RequiresExactlyOneArg(t *testing.T) {
	t.Parallel()

	cmd := commands.NewAnalyzeCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestAnalyzeCommand_ReportsColorUsage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sample.gcode")
	require.NoError(t, os.WriteFile(path, []byte(sampleGcode), 0o600))

	var out bytes.Buffer

	cmd := commands.NewAnalyzeCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--no-color", path})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "3 colors")
	assert.Contains(t, out.String(), "T0")
	assert.Contains(t, out.String(), "T1")
	assert.Contains(t, out.String(), "T2")
}

func TestAnalyzeCommand_UnreadableFile(t *testing.T) {
	t.Parallel()

	cmd := commands.NewAnalyzeCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.gcode")})

	require.Error(t, cmd.Execute())
}
