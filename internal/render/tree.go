package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ddddddO/gtree"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/refs"
	"github.com/vk/stackform/internal/synth"
)

// BlockTree writes an indented tree of the synthesized configuration to w:
// one root per top-level block, attributes as leaves, nested blocks as
// branches.
func BlockTree(w io.Writer, nodes []*synth.ConfigNode) error {
	for _, node := range nodes {
		root := gtree.NewRoot(nodeLabel(node))
		addChildren(root, node)
		if err := gtree.OutputProgrammably(w, root); err != nil {
			return err
		}
	}
	return nil
}

func addChildren(parent *gtree.Node, node *synth.ConfigNode) {
	for _, a := range node.Attrs {
		parent.Add(fmt.Sprintf("%s = %s", a.Name, formatValue(a.Value)))
	}
	for _, child := range node.Children {
		branch := parent.Add(nodeLabel(child))
		addChildren(branch, child)
	}
}

func nodeLabel(node *synth.ConfigNode) string {
	label := node.Type
	for _, l := range node.Labels {
		label += fmt.Sprintf(" %q", l)
	}
	return label
}

func formatValue(v cty.Value) string {
	if tok, ok := refs.FromValue(v); ok {
		return tok.String()
	}
	if v.IsNull() {
		return "null"
	}
	switch {
	case v.Type().Equals(cty.String):
		return strconv.Quote(v.AsString())
	case v.Type().Equals(cty.Number):
		return v.AsBigFloat().Text('f', -1)
	case v.Type().Equals(cty.Bool):
		return strconv.FormatBool(v.True())
	case v.Type().IsTupleType() || v.Type().IsListType():
		parts := make([]string, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			parts = append(parts, formatValue(ev))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case v.Type().IsObjectType() || v.Type().IsMapType():
		m := v.AsValueMap()
		parts := make([]string, 0, len(m))
		for _, key := range sortedKeys(m) {
			parts = append(parts, key+" = "+formatValue(m[key]))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return v.GoString()
	}
}

func sortedKeys(m map[string]cty.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
