package synth

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ConfigNode is one labelled block in the synthesized tree. Its contents
// are ordered: leaf assignments first-come-first-kept, child blocks in
// input order.
type ConfigNode struct {
	// Type is the block type, e.g. "resource", "data", or a nested field name.
	Type string
	// Labels are the block labels, e.g. ["aws_instance", "web"]. Nested
	// blocks carry no labels.
	Labels []string
	// Attrs are the leaf assignments. The same name may appear more than
	// once: lists of scalars keep their multiplicity here.
	Attrs []Assignment
	// Children are nested and repeated blocks, in input order.
	Children []*ConfigNode
}

// Assignment is a single leaf: a field name bound to a scalar value or a
// deferred output token.
type Assignment struct {
	Name  string
	Value cty.Value
	// FromList marks an assignment unrolled from a list value, so the
	// renderers can restore the brackets even when the list had one element.
	FromList bool
}

// UnsupportedNestedTypeError reports a value kind the synthesizer cannot
// express as blocks. It indicates a schema or data bug, not user input.
type UnsupportedNestedTypeError struct {
	Field string
	Type  cty.Type
}

func (e *UnsupportedNestedTypeError) Error() string {
	return fmt.Sprintf("cannot synthesize %s: unsupported value kind %s", e.Field, e.Type.FriendlyName())
}
