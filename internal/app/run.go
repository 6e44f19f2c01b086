package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vk/stackform/internal/ctxlog"
	"github.com/vk/stackform/internal/engine"
	"github.com/vk/stackform/internal/envdefaults"
	"github.com/vk/stackform/internal/hclload"
	"github.com/vk/stackform/internal/render"
	"github.com/vk/stackform/internal/session"
	"github.com/vk/stackform/internal/synth"
)

// Run executes the main application logic: construct every stack
// declaration through the engine pipeline, write the synthesized blocks,
// and print the outputs table.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	sess := session.New()
	eng := engine.New(sess, a.defaults, envdefaults.Tier(a.config.Tier))

	references, err := hclload.LoadStack(ctx, eng, a.registry.Schema, a.config.StackPath)
	if err != nil {
		return fmt.Errorf("failed to construct stack: %w", err)
	}
	if len(references) == 0 {
		a.logger.Warn("No declarations found, nothing to synthesize.")
		return nil
	}

	nodes := sess.Nodes()
	if err := a.writeBlocks(nodes); err != nil {
		return err
	}

	if a.config.Tree {
		if err := render.BlockTree(a.outW, nodes); err != nil {
			return fmt.Errorf("failed to render block tree: %w", err)
		}
	}
	if err := render.OutputsTable(a.outW, references); err != nil {
		return fmt.Errorf("failed to render outputs table: %w", err)
	}

	a.logger.Info("Synthesis finished.", "declarations", len(references), "tier", a.config.Tier)
	return nil
}

func (a *App) writeBlocks(nodes []*synth.ConfigNode) error {
	var w io.Writer = a.outW
	if a.config.OutPath != "" {
		f, err := os.Create(a.config.OutPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if a.config.Format == "json" {
		if err := synth.WriteJSON(w, nodes); err != nil {
			return fmt.Errorf("failed to render JSON: %w", err)
		}
		return nil
	}
	if err := synth.WriteHCL(w, nodes); err != nil {
		return fmt.Errorf("failed to render HCL: %w", err)
	}
	return nil
}
