// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package validate

import (
	"fmt"
	"unicode/utf8"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/stackform/internal/schema"
)

// Validate applies the schema to a raw attribute map. On success it returns
// the complete, defaulted, constraint-checked attribute set. On failure it
// returns either a *ValidationError carrying every leaf violation found, or
// a *RuleError for the first cross-field rule that failed.
func Validate(sch *schema.Schema, raw map[string]cty.Value) (*Attributes, error) {
	values, violations := validateBody(sch, raw, nil)
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	for _, rule := range sch.Rules() {
		if rule.Check == nil {
			continue
		}
		if err := rule.Check(copyValues(values)); err != nil {
			return nil, &RuleError{Rule: rule.Name, Reason: err}
		}
	}

	return &Attributes{schema: sch, values: values}, nil
}

// validateBody walks one schema level against one raw map, collecting leaf
// violations and producing the defaulted value map for that level.
func validateBody(sch *schema.Schema, raw map[string]cty.Value, base cty.Path) (map[string]cty.Value, []Violation) {
	var violations []Violation
	values := make(map[string]cty.Value, len(raw))

	declared := make(map[string]struct{})
	for _, name := range sch.AttributeNames() {
		declared[name] = struct{}{}
	}
	for name := range raw {
		if _, ok := declared[name]; !ok {
			violations = append(violations, Violation{
				Path:       pathAttr(base, name),
				Constraint: "not declared by the schema",
				Value:      raw[name],
			})
		}
	}

	for _, name := range sch.AttributeNames() {
		attr, _ := sch.Attribute(name)
		path := pathAttr(base, name)

		rv, present := raw[name]
		if !present || rv == cty.NilVal || rv.IsNull() {
			switch {
			case attr.Required:
				violations = append(violations, Violation{Path: path, Constraint: "required attribute is missing"})
			case attr.Default != cty.NilVal:
				values[name] = attr.Default
			case attr.Nested != nil:
				values[name] = cty.NullVal(cty.DynamicPseudoType)
			default:
				values[name] = cty.NullVal(attr.Type)
			}
			continue
		}

		// A deferred reference token standing in for the whole attribute has
		// no concrete value yet; it passes untouched and is resolved by the
		// external renderer. Tokens nested inside collections exempt only
		// themselves, further down.
		if rv.Type().IsCapsuleType() {
			values[name] = rv
			continue
		}

		if attr.Nested != nil {
			v, vio := validateNested(attr, rv, path)
			violations = append(violations, vio...)
			if len(vio) == 0 {
				values[name] = v
			}
			continue
		}

		v, vio := checkLeaf(attr, rv, path)
		violations = append(violations, vio...)
		if len(vio) == 0 {
			values[name] = v
		}
	}

	return values, violations
}

// validateNested recurses into block attributes: a single object for plain
// blocks, or a list of objects for repeated blocks with the element index
// reported in the violation path.
func validateNested(attr *schema.Attribute, rv cty.Value, path cty.Path) (cty.Value, []Violation) {
	if attr.Repeated {
		if !rv.Type().IsTupleType() && !rv.Type().IsListType() {
			return cty.NilVal, []Violation{{Path: path, Constraint: "must be a list of blocks", Value: rv}}
		}
		var violations []Violation
		elems := rv.AsValueSlice()
		validated := make([]cty.Value, 0, len(elems))
		for i, elem := range elems {
			if elem.Type().IsCapsuleType() {
				validated = append(validated, elem)
				continue
			}
			elemPath := pathIndex(path, i)
			v, vio := validateNested(&schema.Attribute{Name: attr.Name, Nested: attr.Nested}, elem, elemPath)
			violations = append(violations, vio...)
			if len(vio) == 0 {
				validated = append(validated, v)
			}
		}
		if len(violations) > 0 {
			return cty.NilVal, violations
		}
		if len(validated) == 0 {
			return cty.EmptyTupleVal, nil
		}
		return cty.TupleVal(validated), nil
	}

	if !rv.Type().IsObjectType() && !rv.Type().IsMapType() {
		return cty.NilVal, []Violation{{Path: path, Constraint: "must be a block", Value: rv}}
	}
	values, violations := validateBody(attr.Nested, rv.AsValueMap(), path)
	if len(violations) > 0 {
		return cty.NilVal, violations
	}
	return cty.ObjectVal(values), nil
}

// checkLeaf enforces the per-value constraints of a non-block attribute:
// type conformance, enum membership, numeric range, string length, pattern.
func checkLeaf(attr *schema.Attribute, rv cty.Value, path cty.Path) (cty.Value, []Violation) {
	if containsDeferred(rv) {
		return checkDeferredLeaf(attr, rv, path)
	}

	v := rv
	if attr.Type != cty.NilType && attr.Type != cty.DynamicPseudoType {
		conv, err := convert.Convert(rv, attr.Type)
		if err != nil {
			return cty.NilVal, []Violation{{
				Path:       path,
				Constraint: fmt.Sprintf("must be %s, got %s", attr.Type.FriendlyName(), rv.Type().FriendlyName()),
				Value:      rv,
			}}
		}
		v = conv
	}

	var violations []Violation

	if len(attr.Allowed) > 0 {
		member := false
		for _, allowed := range attr.Allowed {
			if v.RawEquals(allowed) {
				member = true
				break
			}
		}
		if !member {
			violations = append(violations, Violation{
				Path:       path,
				Constraint: fmt.Sprintf("must be one of %s", enumList(attr.Allowed)),
				Value:      v,
			})
		}
	}

	if v.Type().Equals(cty.Number) && (attr.Min != nil || attr.Max != nil) {
		f, _ := v.AsBigFloat().Float64()
		if attr.Min != nil && f < *attr.Min {
			violations = append(violations, Violation{
				Path:       path,
				Constraint: fmt.Sprintf("out of range %s", rangeLabel(attr.Min, attr.Max)),
				Value:      v,
			})
		} else if attr.Max != nil && f > *attr.Max {
			violations = append(violations, Violation{
				Path:       path,
				Constraint: fmt.Sprintf("out of range %s", rangeLabel(attr.Min, attr.Max)),
				Value:      v,
			})
		}
	}

	if v.Type().Equals(cty.String) {
		str := v.AsString()
		length := utf8.RuneCountInString(str)
		if attr.MinLength != nil && length < *attr.MinLength {
			violations = append(violations, Violation{
				Path:       path,
				Constraint: fmt.Sprintf("length %d is below minimum %d", length, *attr.MinLength),
				Value:      v,
			})
		}
		if attr.MaxLength != nil && length > *attr.MaxLength {
			violations = append(violations, Violation{
				Path:       path,
				Constraint: fmt.Sprintf("length %d exceeds maximum %d", length, *attr.MaxLength),
				Value:      v,
			})
		}
		if attr.Pattern != nil && !attr.Pattern.MatchString(str) {
			violations = append(violations, Violation{
				Path:       path,
				Constraint: fmt.Sprintf("must match pattern %q", attr.Pattern.String()),
				Value:      v,
			})
		}
	}

	if len(violations) > 0 {
		return cty.NilVal, violations
	}
	return v, nil
}

// checkDeferredLeaf handles a leaf collection that mixes deferred tokens
// with concrete values: each token passes untouched, and every concrete
// element is checked against the declared element type as usual.
func checkDeferredLeaf(attr *schema.Attribute, rv cty.Value, path cty.Path) (cty.Value, []Violation) {
	if rv.Type().IsCapsuleType() {
		return rv, nil
	}

	elemType := cty.DynamicPseudoType
	if attr.Type != cty.NilType && (attr.Type.IsListType() || attr.Type.IsSetType() || attr.Type.IsMapType()) {
		elemType = attr.Type.ElementType()
	}
	elemAttr := &schema.Attribute{Name: attr.Name, Type: elemType}

	t := rv.Type()
	switch {
	case t.IsTupleType() || t.IsListType():
		var violations []Violation
		elems := rv.AsValueSlice()
		checked := make([]cty.Value, 0, len(elems))
		for i, elem := range elems {
			if elem.Type().IsCapsuleType() {
				checked = append(checked, elem)
				continue
			}
			v, vio := checkLeaf(elemAttr, elem, pathIndex(path, i))
			violations = append(violations, vio...)
			if len(vio) == 0 {
				checked = append(checked, v)
			}
		}
		if len(violations) > 0 {
			return cty.NilVal, violations
		}
		return cty.TupleVal(checked), nil

	case t.IsObjectType() || t.IsMapType():
		var violations []Violation
		entries := rv.AsValueMap()
		checked := make(map[string]cty.Value, len(entries))
		for k, elem := range entries {
			if elem.Type().IsCapsuleType() {
				checked[k] = elem
				continue
			}
			v, vio := checkLeaf(elemAttr, elem, pathAttr(path, k))
			violations = append(violations, vio...)
			if len(vio) == 0 {
				checked[k] = v
			}
		}
		if len(violations) > 0 {
			return cty.NilVal, violations
		}
		return cty.ObjectVal(checked), nil

	default:
		return rv, nil
	}
}

// containsDeferred reports whether the value, or any value nested inside
// it, is a capsule (a deferred reference token).
func containsDeferred(v cty.Value) bool {
	if v == cty.NilVal || v.IsNull() {
		return false
	}
	t := v.Type()
	switch {
	case t.IsCapsuleType():
		return true
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		for _, elem := range v.AsValueSlice() {
			if containsDeferred(elem) {
				return true
			}
		}
	case t.IsObjectType() || t.IsMapType():
		for _, elem := range v.AsValueMap() {
			if containsDeferred(elem) {
				return true
			}
		}
	}
	return false
}

func enumList(allowed []cty.Value) string {
	out := ""
	for i, v := range allowed {
		if i > 0 {
			out += ", "
		}
		if v.Type().Equals(cty.String) {
			out += fmt.Sprintf("%q", v.AsString())
		} else {
			out += v.GoString()
		}
	}
	return "[" + out + "]"
}

func rangeLabel(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%v-%v", *min, *max)
	case min != nil:
		return fmt.Sprintf(">= %v", *min)
	default:
		return fmt.Sprintf("<= %v", *max)
	}
}

// pathAttr and pathIndex extend a path without sharing the base path's
// backing array, so violations recorded earlier keep their paths intact.
func pathAttr(base cty.Path, name string) cty.Path {
	p := make(cty.Path, len(base), len(base)+1)
	copy(p, base)
	return append(p, cty.GetAttrStep{Name: name})
}

func pathIndex(base cty.Path, i int) cty.Path {
	p := make(cty.Path, len(base), len(base)+1)
	copy(p, base)
	return append(p, cty.IndexStep{Key: cty.NumberIntVal(int64(i))})
}

func copyValues(values map[string]cty.Value) map[string]cty.Value {
	out := make(map[string]cty.Value, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
