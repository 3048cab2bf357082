// Package commands provides CLI command implementations for gcodeslots.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/amscore/gcodeslots/internal/cache"
	"github.com/amscore/gcodeslots/internal/config"
	"github.com/amscore/gcodeslots/internal/observability"
)

// App bundles the shared dependencies every command wires together:
// configuration, the result cache, the structured logger, and the progress
// event dispatcher.
type App struct {
	Config *config.Config
	Cache  *cache.Cache
	Logger *slog.Logger
	Events *observability.Dispatcher
}

// NewApp loads configuration from configPath (empty uses defaults plus
// environment overrides) and constructs the shared dependencies commands
// need.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	var resultCache *cache.Cache
	if cfg.Cache.Enabled {
		resultCache = cache.New(cfg.Cache.Capacity)
	}

	return &App{Config: cfg, Cache: resultCache, Logger: logger, Events: observability.NewDispatcher()}, nil
}

// ConfigHash derives the cache.Key's ConfigHash component from the knobs
// that influence parsing/optimization output.
func (a *App) ConfigHash() string {
	return cache.HashConfig(fmt.Sprintf("%d-%d-%s-%d",
		a.Config.System.SlotsPerUnit, a.Config.System.UnitCount,
		a.Config.System.Type, a.Config.System.SecondsPerSwap))
}
