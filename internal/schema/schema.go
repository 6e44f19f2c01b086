// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package schema

import (
	"regexp"

	"github.com/zclconf/go-cty/cty"
)

// Attribute is the compiled descriptor of a single field. Exactly one of
// Type and Nested is set: Type for scalar/list/map values, Nested for a
// block whose contents follow a sub-schema.
type Attribute struct {
	Name     string
	Type     cty.Type
	Required bool
	// Default is substituted when an optional attribute is absent.
	// cty.NilVal means the attribute has no default.
	Default cty.Value
	// Allowed restricts the attribute to an enumerated set of values.
	Allowed []cty.Value
	// Min and Max bound numeric values, inclusive.
	Min *float64
	Max *float64
	// MinLength and MaxLength bound string lengths, inclusive.
	MinLength *int
	MaxLength *int
	// Pattern is a compiled regular expression string values must match.
	Pattern *regexp.Regexp

	// Nested is the sub-schema for block attributes. Repeated marks a block
	// that may appear multiple times (the value is then a list of objects).
	Nested   *Schema
	Repeated bool
}

// Rule is a named cross-field invariant. Check runs only after every leaf
// attribute has been defaulted and individually validated, and receives the
// complete top-level attribute map.
type Rule struct {
	Name  string
	Check func(values map[string]cty.Value) error
}

// Schema is the compiled, immutable schema for one resource type.
type Schema struct {
	attrs   map[string]*Attribute
	order   []string
	outputs []string
	rules   []Rule
}

// Attribute returns the descriptor for the named attribute, if declared.
func (s *Schema) Attribute(name string) (*Attribute, bool) {
	a, ok := s.attrs[name]
	return a, ok
}

// AttributeNames returns attribute names in declaration order.
func (s *Schema) AttributeNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Outputs returns the declared output field names in declaration order.
func (s *Schema) Outputs() []string {
	out := make([]string, len(s.outputs))
	copy(out, s.outputs)
	return out
}

// Rules returns the cross-field rules in declaration order.
func (s *Schema) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}
