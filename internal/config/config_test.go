package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/internal/config"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, "magazine", cfg.System.Type)
	require.Equal(t, 4, cfg.System.SlotsPerUnit)
	require.Equal(t, "optimized", cfg.Parser.Algorithm)
	require.Equal(t, "greedy", cfg.Optimizer.Algorithm)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gcodeslots.yaml")
	contents := "system:\n  type: toolhead\n  unit_count: 2\n  slots_per_unit: 6\nparser:\n  algorithm: worker\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "toolhead", cfg.System.Type)
	require.Equal(t, 2, cfg.System.UnitCount)
	require.Equal(t, 6, cfg.System.SlotsPerUnit)
	require.Equal(t, "worker", cfg.Parser.Algorithm)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	cfg.System.SlotsPerUnit = 0
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidSlotsPerUnit)

	cfg, _ = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg.System.Type = "carousel"
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidSystemType)

	cfg, _ = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg.Parser.Algorithm = "quantum"
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidParserAlgorithm)
}
