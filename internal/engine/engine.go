// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package engine is the public construction pipeline: raw attributes flow
// through environment defaults, schema validation and block synthesis, the
// finished block is emitted to the session's render boundary, and the
// caller keeps a reference handle exposing known inputs and symbolic output
// tokens.
//
// Every operation is a synchronous in-memory transformation. The engine
// performs no I/O and never resolves tokens; ordering and materialization
// belong to the external renderer.
package engine

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/arch"
	"github.com/vk/stackform/internal/ctxlog"
	"github.com/vk/stackform/internal/envdefaults"
	"github.com/vk/stackform/internal/refs"
	"github.com/vk/stackform/internal/schema"
	"github.com/vk/stackform/internal/session"
	"github.com/vk/stackform/internal/synth"
	"github.com/vk/stackform/internal/validate"
)

// Engine binds one synthesis session to one environment tier. It carries no
// other state; schemas arrive per call so that independent engines can
// share schema definitions freely.
type Engine struct {
	sess     *session.Session
	defaults *envdefaults.Table
	tier     envdefaults.Tier
}

// New creates an engine over the given session. defaults may be nil, in
// which case raw attributes pass through unmerged.
func New(sess *session.Session, defaults *envdefaults.Table, tier envdefaults.Tier) *Engine {
	return &Engine{sess: sess, defaults: defaults, tier: tier}
}

// Session returns the engine's session, for handing its emitted blocks to
// the renderer boundary.
func (e *Engine) Session() *session.Session {
	return e.sess
}

// Tier returns the environment tier this engine resolves defaults for.
func (e *Engine) Tier() envdefaults.Tier {
	return e.tier
}

// Resource declares one managed resource: defaults, validation, synthesis,
// registration, emission, reference. Any failure leaves the session
// untouched, so the caller can fix the input and declare again under the
// same name.
func (e *Engine) Resource(ctx context.Context, typ, name string, sch *schema.Schema, raw map[string]cty.Value) (*refs.ResourceReference, error) {
	return e.construct(ctx, "resource", typ, name, sch, raw)
}

// DataSource declares a read-only lookup. Same pipeline as Resource; the
// emitted block and the reference tokens carry the "data" marker.
func (e *Engine) DataSource(ctx context.Context, typ, name string, sch *schema.Schema, raw map[string]cty.Value) (*refs.ResourceReference, error) {
	return e.construct(ctx, "data", typ, name, sch, raw)
}

func (e *Engine) construct(ctx context.Context, kind, typ, name string, sch *schema.Schema, raw map[string]cty.Value) (*refs.ResourceReference, error) {
	logger := ctxlog.FromContext(ctx)

	merged := e.defaults.Resolve(e.tier, typ, raw)
	attrs, err := validate.Validate(sch, merged)
	if err != nil {
		return nil, err
	}

	var ref *refs.ResourceReference
	if kind == "data" {
		ref = refs.NewDataSource(typ, name, attrs, sch.Outputs())
	} else {
		ref = refs.NewResource(typ, name, attrs, sch.Outputs())
	}

	// Synthesize before claiming the name: nothing can fail between the
	// claim and the emission, so a failed declaration never leaves a stale
	// claim behind.
	node, err := synth.Block(kind, []string{typ, name}, sch, attrs)
	if err != nil {
		return nil, err
	}

	if err := e.sess.Register(ref.Addr()); err != nil {
		return nil, err
	}
	e.sess.Emit(node)

	logger.Debug("Declared block.", "kind", kind, "addr", ref.Addr(), "outputs", len(sch.Outputs()))
	return ref, nil
}

// Architecture composes many constructions into one named aggregate. The
// architecture's own attributes run through the same defaults and
// validation pipeline as a resource (keyed by the architecture type), then
// the tier builders run in order. The first tier failure aborts the whole
// composition.
func (e *Engine) Architecture(ctx context.Context, typ, name string, sch *schema.Schema, tiers []arch.Tier, raw map[string]cty.Value) (*arch.ArchitectureReference, error) {
	logger := ctxlog.FromContext(ctx)

	merged := e.defaults.Resolve(e.tier, typ, raw)
	attrs, err := validate.Validate(sch, merged)
	if err != nil {
		return nil, err
	}

	// The claim is taken before the tiers run, so a duplicate architecture
	// never declares resources. It is released on failure: a failed
	// composition must not block the corrected re-invocation.
	addr := typ + "." + name
	if err := e.sess.Register(addr); err != nil {
		return nil, err
	}

	ref, err := arch.Build(typ, name, attrs, tiers)
	if err != nil {
		e.sess.Release(addr)
		return nil, err
	}

	logger.Info("Composed architecture.", "addr", addr, "slots", len(ref.Slots()))
	return ref, nil
}
