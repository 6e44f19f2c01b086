package synth

import (
	"io"
	"sort"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/refs"
)

// WriteHCL renders synthesized blocks as HCL source, the textual form the
// external renderer consumes. Deferred tokens render as real traversals
// (type.name.field), never as quoted strings.
func WriteHCL(w io.Writer, nodes []*ConfigNode) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	for i, node := range nodes {
		if i > 0 {
			body.AppendNewline()
		}
		appendHCLBlock(body, node)
	}
	_, err := f.WriteTo(w)
	return err
}

func appendHCLBlock(body *hclwrite.Body, node *ConfigNode) {
	blk := body.AppendNewBlock(node.Type, node.Labels)
	inner := blk.Body()

	// The node model keeps repeated leaf assignments for list multiplicity;
	// an HCL body holds one attribute per name, so repeats fold back into a
	// tuple expression here.
	for _, group := range groupAssignments(node.Attrs) {
		if len(group.values) == 1 && !group.fromList {
			inner.SetAttributeRaw(group.name, valueTokens(group.values[0]))
			continue
		}
		elems := make([]hclwrite.Tokens, len(group.values))
		for i, v := range group.values {
			elems[i] = valueTokens(v)
		}
		inner.SetAttributeRaw(group.name, hclwrite.TokensForTuple(elems))
	}

	for _, child := range node.Children {
		appendHCLBlock(inner, child)
	}
}

// valueTokens renders a single value, recursing so that tokens nested in
// collections still come out as traversals.
func valueTokens(v cty.Value) hclwrite.Tokens {
	if tok, ok := refs.FromValue(v); ok {
		return hclwrite.TokensForTraversal(tok.Traversal())
	}
	t := v.Type()
	switch {
	case !v.IsNull() && (t.IsTupleType() || t.IsListType()):
		elems := v.AsValueSlice()
		tokens := make([]hclwrite.Tokens, len(elems))
		for i, elem := range elems {
			tokens[i] = valueTokens(elem)
		}
		return hclwrite.TokensForTuple(tokens)
	case !v.IsNull() && (t.IsObjectType() || t.IsMapType()):
		entries := v.AsValueMap()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make([]hclwrite.ObjectAttrTokens, len(keys))
		for i, k := range keys {
			attrs[i] = hclwrite.ObjectAttrTokens{
				Name:  hclwrite.TokensForIdentifier(k),
				Value: valueTokens(entries[k]),
			}
		}
		return hclwrite.TokensForObject(attrs)
	default:
		return hclwrite.TokensForValue(v)
	}
}

type assignmentGroup struct {
	name     string
	values   []cty.Value
	fromList bool
}

// groupAssignments collapses repeated names while keeping first-occurrence
// order. A group that came from a list stays a list even with one element.
func groupAssignments(attrs []Assignment) []assignmentGroup {
	index := make(map[string]int, len(attrs))
	var groups []assignmentGroup
	for _, a := range attrs {
		if i, ok := index[a.Name]; ok {
			groups[i].values = append(groups[i].values, a.Value)
			groups[i].fromList = groups[i].fromList || a.FromList
			continue
		}
		index[a.Name] = len(groups)
		groups = append(groups, assignmentGroup{name: a.Name, values: []cty.Value{a.Value}, fromList: a.FromList})
	}
	return groups
}
