// Package registry holds the compiled schema for every resource type known
// to one application instance. Schemas arrive from manifest files; the
// cross-field rule functions those manifests name arrive from Go; Build
// performs a strict parity check between the two before any schema is used,
// so a missing or orphaned rule fails at startup, not mid-declaration.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/ctxlog"
	"github.com/vk/stackform/internal/hclload"
	"github.com/vk/stackform/internal/schema"
)

// RuleFunc is a cross-field invariant implementation, registered under the
// name a manifest declares.
type RuleFunc func(values map[string]cty.Value) error

// Module is a unit of Go-side registration, typically a set of rule
// functions shipped together.
type Module interface {
	Register(r *Registry)
}

// Registry is the per-instance schema store. It is never a process-wide
// singleton.
type Registry struct {
	defs    map[string]*hclload.Definition
	rules   map[string]map[string]RuleFunc
	catalog map[string]RuleFunc
	schemas map[string]*schema.Schema
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		defs:    make(map[string]*hclload.Definition),
		rules:   make(map[string]map[string]RuleFunc),
		catalog: make(map[string]RuleFunc),
		schemas: make(map[string]*schema.Schema),
	}
}

// RegisterRule binds a rule implementation to (resource type, rule name).
// Registration must happen before Build.
func (r *Registry) RegisterRule(resourceType, name string, fn RuleFunc) {
	byName, ok := r.rules[resourceType]
	if !ok {
		byName = make(map[string]RuleFunc)
		r.rules[resourceType] = byName
	}
	byName[name] = fn
}

// RegisterCatalogRule binds a type-agnostic rule implementation that any
// manifest may declare by name. A per-type registration of the same name
// takes precedence. Catalog rules left undeclared by every manifest are
// not an error.
func (r *Registry) RegisterCatalogRule(name string, fn RuleFunc) {
	r.catalog[name] = fn
}

// RegisterSchema adds a schema compiled directly in Go, bypassing
// manifests. Duplicate types are rejected.
func (r *Registry) RegisterSchema(resourceType string, s *schema.Schema) error {
	if _, dup := r.schemas[resourceType]; dup {
		return fmt.Errorf("schema for type %q is already registered", resourceType)
	}
	if _, dup := r.defs[resourceType]; dup {
		return fmt.Errorf("schema for type %q is already registered", resourceType)
	}
	r.schemas[resourceType] = s
	return nil
}

// LoadDir parses every schema manifest under path into the registry.
func (r *Registry) LoadDir(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)

	defs, err := hclload.LoadManifests(ctx, path)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if _, dup := r.defs[def.Type]; dup {
			return fmt.Errorf("schema for type %q declared twice (second in %s)", def.Type, def.File)
		}
		if _, dup := r.schemas[def.Type]; dup {
			return fmt.Errorf("schema for type %q declared twice (second in %s)", def.Type, def.File)
		}
		r.defs[def.Type] = def
	}

	logger.Info("Schema manifests loaded.", "path", path, "schemas", len(defs))
	return nil
}

// Build performs a strict parity check between manifest-declared rule names
// and registered Go rule functions, then compiles every definition into its
// final schema. Problems are collected and reported together.
func (r *Registry) Build(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for typ, def := range r.defs {
		registered := r.rules[typ]

		declared := make(map[string]struct{}, len(def.RuleNames))
		spec := def.Spec
		for _, name := range def.RuleNames {
			declared[name] = struct{}{}
			fn, ok := registered[name]
			if !ok {
				fn, ok = r.catalog[name]
			}
			if !ok {
				errs = append(errs, fmt.Sprintf("schema %q: manifest declares rule %q, but no Go rule function is registered", typ, name))
				continue
			}
			spec.Rules = append(spec.Rules, schema.Rule{Name: name, Check: fn})
		}
		for name := range registered {
			if _, ok := declared[name]; !ok {
				errs = append(errs, fmt.Sprintf("schema %q: Go rule %q is registered but not declared in the manifest", typ, name))
			}
		}

		compiled, err := schema.Define(spec)
		if err != nil {
			errs = append(errs, fmt.Sprintf("schema %q: %v", typ, err))
			continue
		}
		r.schemas[typ] = compiled
	}

	for typ := range r.rules {
		if _, ok := r.defs[typ]; ok {
			continue
		}
		if _, ok := r.schemas[typ]; ok {
			continue
		}
		errs = append(errs, fmt.Sprintf("rules registered for unknown schema type %q", typ))
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry built.", "schemas", len(r.schemas))
	return nil
}

// Schema returns the compiled schema for a resource type.
func (r *Registry) Schema(resourceType string) (*schema.Schema, bool) {
	s, ok := r.schemas[resourceType]
	return s, ok
}

// Types returns every registered resource type.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.schemas))
	for typ := range r.schemas {
		out = append(out, typ)
	}
	return out
}
