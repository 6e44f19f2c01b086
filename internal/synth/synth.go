// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package synth

import (
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/refs"
	"github.com/vk/stackform/internal/schema"
	"github.com/vk/stackform/internal/validate"
)

// Block synthesizes one top-level block from a validated attribute set.
// Attributes appear in schema declaration order; list elements keep their
// input order; absent optionals are omitted entirely.
func Block(blockType string, labels []string, sch *schema.Schema, attrs *validate.Attributes) (*ConfigNode, error) {
	node := &ConfigNode{Type: blockType, Labels: labels}
	if err := appendBody(node, sch, attrs.Values()); err != nil {
		return nil, err
	}
	return node, nil
}

// appendBody walks one schema level, appending assignments and child
// blocks to node.
func appendBody(node *ConfigNode, sch *schema.Schema, values map[string]cty.Value) error {
	for _, name := range sch.AttributeNames() {
		v, ok := values[name]
		if !ok || v == cty.NilVal || v.IsNull() {
			continue
		}
		attr, _ := sch.Attribute(name)

		// A deferred token stands in for the whole value, whatever its
		// declared shape.
		if refs.IsToken(v) {
			node.Attrs = append(node.Attrs, Assignment{Name: name, Value: v})
			continue
		}

		if attr.Nested != nil {
			if err := appendNestedBlocks(node, name, attr, v); err != nil {
				return err
			}
			continue
		}

		if err := appendValue(node, name, v); err != nil {
			return err
		}
	}
	return nil
}

// appendNestedBlocks emits schema-backed blocks, preserving the nested
// schema's declaration order inside each block.
func appendNestedBlocks(node *ConfigNode, name string, attr *schema.Attribute, v cty.Value) error {
	if attr.Repeated {
		for _, elem := range v.AsValueSlice() {
			if refs.IsToken(elem) {
				node.Attrs = append(node.Attrs, Assignment{Name: name, Value: elem, FromList: true})
				continue
			}
			child := &ConfigNode{Type: name}
			if err := appendBody(child, attr.Nested, elem.AsValueMap()); err != nil {
				return err
			}
			node.Children = append(node.Children, child)
		}
		return nil
	}

	child := &ConfigNode{Type: name}
	if err := appendBody(child, attr.Nested, v.AsValueMap()); err != nil {
		return err
	}
	node.Children = append(node.Children, child)
	return nil
}

// appendValue is the generic, schema-free recursion over a value: the
// finite set of supported kinds is enumerated here and nowhere else.
func appendValue(node *ConfigNode, name string, v cty.Value) error {
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	if refs.IsToken(v) {
		node.Attrs = append(node.Attrs, Assignment{Name: name, Value: v})
		return nil
	}

	t := v.Type()
	switch {
	case t.IsPrimitiveType():
		node.Attrs = append(node.Attrs, Assignment{Name: name, Value: v})
		return nil

	case t.IsTupleType() || t.IsListType():
		for _, elem := range v.AsValueSlice() {
			if elem.IsNull() {
				continue
			}
			et := elem.Type()
			switch {
			case refs.IsToken(elem), et.IsPrimitiveType():
				node.Attrs = append(node.Attrs, Assignment{Name: name, Value: elem, FromList: true})
			case et.IsObjectType() || et.IsMapType():
				child := &ConfigNode{Type: name}
				if err := appendMapping(child, elem); err != nil {
					return err
				}
				node.Children = append(node.Children, child)
			default:
				return &UnsupportedNestedTypeError{Field: name, Type: et}
			}
		}
		return nil

	case t.IsObjectType() || t.IsMapType():
		child := &ConfigNode{Type: name}
		if err := appendMapping(child, v); err != nil {
			return err
		}
		node.Children = append(node.Children, child)
		return nil

	default:
		// Sets, foreign capsules, and anything else outside the
		// scalar/list/map model.
		return &UnsupportedNestedTypeError{Field: name, Type: t}
	}
}

// appendMapping recurses into a map value, walking keys lexically so that
// synthesis stays deterministic for unordered inputs.
func appendMapping(node *ConfigNode, v cty.Value) error {
	entries := v.AsValueMap()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := appendValue(node, k, entries[k]); err != nil {
			return err
		}
	}
	return nil
}
