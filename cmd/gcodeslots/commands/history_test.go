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

func TestHistoryCommand_Subcommands(t *testing.T) {
	t.Parallel()

	cmd := commands.NewHistoryCommand()

	for _, name := range []string{"show", "undo", "redo", "export"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestHistoryCommand_ShowUndoRedoRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sample.gcode")
	require.NoError(t, os.WriteFile(path, []byte(sampleGcode), 0o600))

	historyDir := filepath.Join(dir, ".gcodeslots")

	mergeCmd := commands.NewMergeCommand()
	mergeCmd.SetOut(&bytes.Buffer{})
	mergeCmd.SetArgs([]string{
		"--no-color",
		"--history-dir", historyDir,
		"--target", "T0",
		"--sources", "T2",
		path,
	})
	require.NoError(t, mergeCmd.Execute())

	var showOut bytes.Buffer
	showCmd := commands.NewHistoryCommand()
	showCmd.SetOut(&showOut)
	showCmd.SetArgs([]string{"show", "--history-dir", historyDir, path})
	require.NoError(t, showCmd.Execute())
	assert.Contains(t, showOut.String(), "merged 1 color(s) into T0")

	var undoOut bytes.Buffer
	undoCmd := commands.NewHistoryCommand()
	undoCmd.SetOut(&undoOut)
	undoCmd.SetArgs([]string{"undo", "--history-dir", historyDir, path})
	require.NoError(t, undoCmd.Execute())
	assert.Contains(t, undoOut.String(), "now at s0")

	var redoOut bytes.Buffer
	redoCmd := commands.NewHistoryCommand()
	redoCmd.SetOut(&redoOut)
	redoCmd.SetArgs([]string{"redo", "--history-dir", historyDir, path})
	require.NoError(t, redoCmd.Execute())
	assert.Contains(t, redoOut.String(), "now at s1")
}

func TestHistoryCommand_ExportWritesYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sample.gcode")
	require.NoError(t, os.WriteFile(path, []byte(sampleGcode), 0o600))

	historyDir := filepath.Join(dir, ".gcodeslots")

	mergeCmd := commands.NewMergeCommand()
	mergeCmd.SetOut(&bytes.Buffer{})
	mergeCmd.SetArgs([]string{
		"--no-color",
		"--history-dir", historyDir,
		"--target", "T0",
		"--sources", "T2",
		path,
	})
	require.NoError(t, mergeCmd.Execute())

	outFile := filepath.Join(dir, "timeline.yaml")

	exportCmd := commands.NewHistoryCommand()
	exportCmd.SetOut(&bytes.Buffer{})
	exportCmd.SetArgs([]string{"export", "--history-dir", historyDir, "--output", outFile, path})
	require.NoError(t, exportCmd.Execute())

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestHistoryCommand_ShowWithoutRecordedHistory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cmd := commands.NewHistoryCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"show", "--history-dir", filepath.Join(dir, ".gcodeslots"), "never-merged.gcode"})

	require.Error(t, cmd.Execute())
}
