package hclload

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/ctxlog"
	"github.com/vk/stackform/internal/engine"
	"github.com/vk/stackform/internal/fsutil"
	"github.com/vk/stackform/internal/refs"
	"github.com/vk/stackform/internal/schema"
)

// SchemaLookup resolves a resource type to its compiled schema.
type SchemaLookup func(resourceType string) (*schema.Schema, bool)

// stackBodySchema keeps resource and data blocks in source order, which is
// the construction order: the engine does no dependency ordering of its
// own, so a declaration may only reference declarations above it.
var stackBodySchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "data", LabelNames: []string{"type", "name"}},
	},
}

// LoadStack parses every .hcl stack file under path and constructs each
// declaration through the engine pipeline, in source order. It returns the
// references in declaration order.
func LoadStack(ctx context.Context, eng *engine.Engine, lookup SchemaLookup, path string) ([]*refs.ResourceReference, error) {
	logger := ctxlog.FromContext(ctx)

	filePaths, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to walk stack path: %w", err)
	}
	if len(filePaths) == 0 {
		logger.Warn("No .hcl stack files found in path", "path", path)
		return nil, nil
	}

	parser := hclparse.NewParser()
	scope := newRefScope()
	var built []*refs.ResourceReference

	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
		}

		content, diags := hclFile.Body.Content(stackBodySchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode stack file %s: %w", filePath, diags)
		}

		for _, block := range content.Blocks {
			ref, err := buildDeclaration(ctx, eng, lookup, scope, block)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", block.DefRange.String(), err)
			}
			scope.add(ref)
			built = append(built, ref)
		}
		logger.Debug("Loaded stack file.", "file", filePath, "declarations", len(content.Blocks))
	}

	logger.Info("Stack loaded.", "declarations", len(built))
	return built, nil
}

func buildDeclaration(ctx context.Context, eng *engine.Engine, lookup SchemaLookup, scope *refScope, block *hcl.Block) (*refs.ResourceReference, error) {
	typ, name := block.Labels[0], block.Labels[1]

	sch, ok := lookup(typ)
	if !ok {
		return nil, fmt.Errorf("no schema is registered for type %q", typ)
	}

	raw, err := evalAttributes(block.Body, scope.evalContext())
	if err != nil {
		return nil, err
	}

	if block.Type == "data" {
		return eng.DataSource(ctx, typ, name, sch, raw)
	}
	return eng.Resource(ctx, typ, name, sch, raw)
}

// evalAttributes evaluates every attribute expression in the block body.
// References to earlier declarations resolve to output token capsules;
// anything else is an ordinary diagnostic.
func evalAttributes(body hcl.Body, evalCtx *hcl.EvalContext) (map[string]cty.Value, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to read attributes: %w", diags)
	}

	raw := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %q: %w", name, diags)
		}
		raw[name] = v
	}
	return raw, nil
}

// refScope accumulates constructed references and exposes them as HCL
// variables: resources under their type root, lookups under "data".
type refScope struct {
	resources map[string]map[string]cty.Value
	data      map[string]map[string]cty.Value
}

func newRefScope() *refScope {
	return &refScope{
		resources: make(map[string]map[string]cty.Value),
		data:      make(map[string]map[string]cty.Value),
	}
}

func (s *refScope) add(ref *refs.ResourceReference) {
	target := s.resources
	if ref.IsDataSource() {
		target = s.data
	}
	byName, ok := target[ref.Type()]
	if !ok {
		byName = make(map[string]cty.Value)
		target[ref.Type()] = byName
	}

	outputs := make(map[string]cty.Value)
	for field, tok := range ref.Outputs() {
		outputs[field] = tok.Value()
	}
	if len(outputs) == 0 {
		byName[ref.Name()] = cty.EmptyObjectVal
		return
	}
	byName[ref.Name()] = cty.ObjectVal(outputs)
}

func (s *refScope) evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(s.resources)+1)
	for typ, byName := range s.resources {
		instances := make(map[string]cty.Value, len(byName))
		for name, v := range byName {
			instances[name] = v
		}
		vars[typ] = cty.ObjectVal(instances)
	}
	if len(s.data) > 0 {
		types := make(map[string]cty.Value, len(s.data))
		for typ, byName := range s.data {
			instances := make(map[string]cty.Value, len(byName))
			for name, v := range byName {
				instances[name] = v
			}
			types[typ] = cty.ObjectVal(instances)
		}
		vars["data"] = cty.ObjectVal(types)
	}
	return &hcl.EvalContext{Variables: vars}
}
