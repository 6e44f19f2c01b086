package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Spec is the raw, declarative input to Define. It mirrors what a schema
// manifest expresses; cross-field rule functions are attached in Go because
// they are code, not data.
type Spec struct {
	Attributes []AttributeSpec
	Outputs    []string
	Rules      []Rule
}

// AttributeSpec describes one attribute before compilation.
type AttributeSpec struct {
	Name      string
	Type      cty.Type
	Required  bool
	Default   cty.Value
	Allowed   []cty.Value
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Pattern   string

	Nested   *Spec
	Repeated bool
}

// Define compiles a Spec into an immutable Schema. It rejects malformed
// specs (duplicate names, defaults that contradict their own type, patterns
// that do not compile) so that a Schema value is trustworthy by construction.
func Define(spec Spec) (*Schema, error) {
	var errs []string
	s, errs2 := compile(spec, "")
	errs = append(errs, errs2...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid schema:\n- %s", strings.Join(errs, "\n- "))
	}
	return s, nil
}

// MustDefine is Define for package-level schema declarations; a bad spec is
// a programmer error, so it panics.
func MustDefine(spec Spec) *Schema {
	s, err := Define(spec)
	if err != nil {
		panic(err)
	}
	return s
}

func compile(spec Spec, prefix string) (*Schema, []string) {
	var errs []string
	s := &Schema{
		attrs:   make(map[string]*Attribute, len(spec.Attributes)),
		outputs: spec.Outputs,
		rules:   spec.Rules,
	}

	for _, as := range spec.Attributes {
		path := prefix + as.Name
		if as.Name == "" {
			errs = append(errs, "attribute with empty name")
			continue
		}
		if _, dup := s.attrs[as.Name]; dup {
			errs = append(errs, fmt.Sprintf("%s: declared twice", path))
			continue
		}

		attr := &Attribute{
			Name:      as.Name,
			Type:      as.Type,
			Required:  as.Required,
			Default:   as.Default,
			Allowed:   as.Allowed,
			Min:       as.Min,
			Max:       as.Max,
			MinLength: as.MinLength,
			MaxLength: as.MaxLength,
			Repeated:  as.Repeated,
		}

		if as.Nested != nil {
			if as.Type != cty.NilType {
				errs = append(errs, fmt.Sprintf("%s: has both a type and a nested block schema", path))
			}
			nested, nestedErrs := compile(*as.Nested, path+".")
			errs = append(errs, nestedErrs...)
			attr.Nested = nested
		} else {
			if as.Type == cty.NilType {
				errs = append(errs, fmt.Sprintf("%s: has neither a type nor a nested block schema", path))
			}
			if as.Type != cty.NilType && containsSet(as.Type) {
				errs = append(errs, fmt.Sprintf("%s: set types cannot be synthesized, use a list", path))
			}
			if as.Repeated {
				errs = append(errs, fmt.Sprintf("%s: repeated is only valid on nested blocks", path))
			}
		}

		if as.Required && as.Default != cty.NilVal {
			errs = append(errs, fmt.Sprintf("%s: required attributes cannot carry a default", path))
		}
		if as.Default != cty.NilVal && as.Type != cty.NilType {
			if err := conforms(as.Default, as.Type); err != nil {
				errs = append(errs, fmt.Sprintf("%s: default %s", path, err))
			}
		}
		for _, av := range as.Allowed {
			if as.Type != cty.NilType {
				if err := conforms(av, as.Type); err != nil {
					errs = append(errs, fmt.Sprintf("%s: allowed value %s", path, err))
				}
			}
		}
		if as.Min != nil && as.Max != nil && *as.Min > *as.Max {
			errs = append(errs, fmt.Sprintf("%s: min %v exceeds max %v", path, *as.Min, *as.Max))
		}
		if as.Pattern != "" {
			re, err := regexp.Compile(as.Pattern)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: pattern does not compile: %v", path, err))
			} else {
				attr.Pattern = re
			}
		}

		s.attrs[as.Name] = attr
		s.order = append(s.order, as.Name)
	}

	seenOutputs := make(map[string]struct{}, len(spec.Outputs))
	for _, out := range spec.Outputs {
		if out == "" {
			errs = append(errs, "output with empty name")
			continue
		}
		if _, dup := seenOutputs[out]; dup {
			errs = append(errs, fmt.Sprintf("output %q declared twice", out))
		}
		seenOutputs[out] = struct{}{}
	}

	seenRules := make(map[string]struct{}, len(spec.Rules))
	for _, rule := range spec.Rules {
		if rule.Name == "" {
			errs = append(errs, "rule with empty name")
			continue
		}
		if _, dup := seenRules[rule.Name]; dup {
			errs = append(errs, fmt.Sprintf("rule %q declared twice", rule.Name))
		}
		seenRules[rule.Name] = struct{}{}
	}

	return s, errs
}

// containsSet reports whether a set type appears anywhere inside t.
func containsSet(t cty.Type) bool {
	switch {
	case t.IsSetType():
		return true
	case t.IsListType() || t.IsMapType():
		return containsSet(t.ElementType())
	case t.IsTupleType():
		for _, et := range t.TupleElementTypes() {
			if containsSet(et) {
				return true
			}
		}
	case t.IsObjectType():
		for _, et := range t.AttributeTypes() {
			if containsSet(et) {
				return true
			}
		}
	}
	return false
}

// conforms reports whether the value can be converted to the wanted type.
// DynamicPseudoType accepts anything.
func conforms(v cty.Value, want cty.Type) error {
	if want == cty.DynamicPseudoType {
		return nil
	}
	if v.Type().Equals(want) {
		return nil
	}
	if _, err := convert.Convert(v, want); err != nil {
		return fmt.Errorf("has type %s, want %s", v.Type().FriendlyName(), want.FriendlyName())
	}
	return nil
}
