package synth

import (
	"io"
	"math/big"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/refs"
)

// WriteJSON renders synthesized blocks as a JSON document, for renderers
// that prefer a structured feed over HCL text. Tokens render as their
// stable textual form.
func WriteJSON(w io.Writer, nodes []*ConfigNode) error {
	doc := make([]map[string]any, len(nodes))
	for i, node := range nodes {
		doc[i] = map[string]any{
			"type":   node.Type,
			"labels": node.Labels,
			"body":   bodyToGo(node),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// bodyToGo flattens one node body: repeated assignment names fold into
// arrays, repeated child block types fold into arrays of bodies.
func bodyToGo(node *ConfigNode) map[string]any {
	body := make(map[string]any)

	for _, group := range groupAssignments(node.Attrs) {
		if len(group.values) == 1 && !group.fromList {
			body[group.name] = valueToGo(group.values[0])
			continue
		}
		arr := make([]any, len(group.values))
		for i, v := range group.values {
			arr[i] = valueToGo(v)
		}
		body[group.name] = arr
	}

	childIndex := make(map[string][]map[string]any)
	var childOrder []string
	for _, child := range node.Children {
		if _, seen := childIndex[child.Type]; !seen {
			childOrder = append(childOrder, child.Type)
		}
		childIndex[child.Type] = append(childIndex[child.Type], bodyToGo(child))
	}
	for _, typ := range childOrder {
		bodies := childIndex[typ]
		if len(bodies) == 1 {
			body[typ] = bodies[0]
			continue
		}
		body[typ] = bodies
	}

	return body
}

// valueToGo converts a cty value into the plain Go shape the JSON encoder
// accepts.
func valueToGo(v cty.Value) any {
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	if tok, ok := refs.FromValue(v); ok {
		return tok.String()
	}
	t := v.Type()
	switch {
	case t.Equals(cty.String):
		return v.AsString()
	case t.Equals(cty.Bool):
		return v.True()
	case t.Equals(cty.Number):
		bf := v.AsBigFloat()
		if i, acc := bf.Int64(); acc == big.Exact {
			return i
		}
		f, _ := bf.Float64()
		return f
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		elems := v.AsValueSlice()
		arr := make([]any, len(elems))
		for i, elem := range elems {
			arr[i] = valueToGo(elem)
		}
		return arr
	case t.IsObjectType() || t.IsMapType():
		entries := v.AsValueMap()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k] = valueToGo(entries[k])
		}
		return out
	default:
		return v.GoString()
	}
}
