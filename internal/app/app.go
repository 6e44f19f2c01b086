package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/stackform/internal/ctxlog"
	"github.com/vk/stackform/internal/envdefaults"
	"github.com/vk/stackform/internal/registry"
	"github.com/vk/stackform/internal/rules"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	defaults *envdefaults.Table
	config   *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = []registry.Module{rules.Core{}}
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("Go rule modules registered.", "count", len(modules))

	if err := reg.LoadDir(ctx, cfg.SchemasPath); err != nil {
		return nil, fmt.Errorf("failed to load schema manifests: %w", err)
	}
	if err := reg.Build(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry built and validated.")

	var defaults *envdefaults.Table
	if cfg.DefaultsPath != "" {
		table, err := envdefaults.LoadFile(cfg.DefaultsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load tier defaults: %w", err)
		}
		defaults = table
		logger.Debug("Tier defaults loaded.", "file", cfg.DefaultsPath)
	}

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		defaults: defaults,
		config:   cfg,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
