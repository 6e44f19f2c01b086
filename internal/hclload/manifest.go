package hclload

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/ctxlog"
	"github.com/vk/stackform/internal/fsutil"
	"github.com/vk/stackform/internal/schema"
)

// Definition is one resource type's schema as authored in a manifest. The
// spec carries everything data can express; cross-field rule functions are
// code and are attached by the registry under the declared rule names.
type Definition struct {
	Type      string
	Spec      schema.Spec
	RuleNames []string
	File      string
}

// --- manifest decoding schemas ---

type manifestFile struct {
	Schemas []*schemaBlock `hcl:"schema,block"`
}

type schemaBlock struct {
	Type       string            `hcl:"type,label"`
	Attributes []*attributeBlock `hcl:"attribute,block"`
	Blocks     []*nestedBlock    `hcl:"block,block"`
	Outputs    []*outputBlock    `hcl:"output,block"`
	Rules      []*ruleBlock      `hcl:"rule,block"`
}

type attributeBlock struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Required    bool           `hcl:"required,optional"`
	Default     *cty.Value     `hcl:"default,optional"`
	Allowed     *cty.Value     `hcl:"allowed,optional"`
	Min         *float64       `hcl:"min,optional"`
	Max         *float64       `hcl:"max,optional"`
	MinLength   *int           `hcl:"min_length,optional"`
	MaxLength   *int           `hcl:"max_length,optional"`
	Pattern     string         `hcl:"pattern,optional"`
	Description string         `hcl:"description,optional"`
}

type nestedBlock struct {
	Name       string            `hcl:"name,label"`
	Repeated   bool              `hcl:"repeated,optional"`
	Attributes []*attributeBlock `hcl:"attribute,block"`
	Blocks     []*nestedBlock    `hcl:"block,block"`
}

type outputBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

type ruleBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

// LoadManifests parses every .hcl manifest under path into schema
// definitions, in sorted file order.
func LoadManifests(ctx context.Context, path string) ([]*Definition, error) {
	logger := ctxlog.FromContext(ctx)

	filePaths, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to walk schema manifests: %w", err)
	}
	if len(filePaths) == 0 {
		logger.Warn("No .hcl schema manifests found in path", "path", path)
		return nil, nil
	}

	parser := hclparse.NewParser()
	var defs []*Definition
	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
		}

		var parsed manifestFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode schema manifest %s: %w", filePath, diags)
		}

		for _, sb := range parsed.Schemas {
			def, err := translateSchemaBlock(sb, filePath)
			if err != nil {
				return nil, fmt.Errorf("schema %q in %s: %w", sb.Type, filePath, err)
			}
			defs = append(defs, def)
		}
		logger.Debug("Loaded schema manifest.", "file", filePath, "schemas", len(parsed.Schemas))
	}

	return defs, nil
}

// translateSchemaBlock converts the HCL-specific manifest shape into the
// format-agnostic schema spec.
func translateSchemaBlock(sb *schemaBlock, filePath string) (*Definition, error) {
	spec, err := translateBody(sb.Attributes, sb.Blocks)
	if err != nil {
		return nil, err
	}
	for _, out := range sb.Outputs {
		spec.Outputs = append(spec.Outputs, out.Name)
	}

	def := &Definition{Type: sb.Type, Spec: *spec, File: filePath}
	for _, rule := range sb.Rules {
		def.RuleNames = append(def.RuleNames, rule.Name)
	}
	return def, nil
}

func translateBody(attrs []*attributeBlock, blocks []*nestedBlock) (*schema.Spec, error) {
	spec := &schema.Spec{}

	for _, ab := range attrs {
		ctyType, err := typeExprToCtyType(ab.Type)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", ab.Name, err)
		}

		as := schema.AttributeSpec{
			Name:      ab.Name,
			Type:      ctyType,
			Required:  ab.Required,
			Min:       ab.Min,
			Max:       ab.Max,
			MinLength: ab.MinLength,
			MaxLength: ab.MaxLength,
			Pattern:   ab.Pattern,
		}
		if ab.Default != nil && !ab.Default.IsNull() {
			as.Default = *ab.Default
		}
		if ab.Allowed != nil && !ab.Allowed.IsNull() {
			if !ab.Allowed.CanIterateElements() {
				return nil, fmt.Errorf("attribute %q: allowed must be a list of values", ab.Name)
			}
			as.Allowed = ab.Allowed.AsValueSlice()
		}
		spec.Attributes = append(spec.Attributes, as)
	}

	for _, nb := range blocks {
		nested, err := translateBody(nb.Attributes, nb.Blocks)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", nb.Name, err)
		}
		spec.Attributes = append(spec.Attributes, schema.AttributeSpec{
			Name:     nb.Name,
			Nested:   nested,
			Repeated: nb.Repeated,
		})
	}

	return spec, nil
}
