// Package rules ships the type-agnostic cross-field rule catalog that
// schema manifests can declare by name. Each rule compares attributes only
// when every operand is a concrete number; unset attributes and deferred
// output tokens are skipped, because a rule can only judge values that
// exist at construction time.
package rules

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/refs"
	"github.com/vk/stackform/internal/registry"
)

// Core registers the built-in rule catalog.
type Core struct{}

func (Core) Register(r *registry.Registry) {
	r.RegisterCatalogRule("min_le_max", MinLeMax)
	r.RegisterCatalogRule("desired_within_bounds", DesiredWithinBounds)
}

// MinLeMax requires min_size <= max_size.
func MinLeMax(values map[string]cty.Value) error {
	min, okMin := number(values, "min_size")
	max, okMax := number(values, "max_size")
	if okMin && okMax && min > max {
		return fmt.Errorf("min_size (%v) must not exceed max_size (%v)", min, max)
	}
	return nil
}

// DesiredWithinBounds requires min_size <= desired_capacity <= max_size.
func DesiredWithinBounds(values map[string]cty.Value) error {
	desired, ok := number(values, "desired_capacity")
	if !ok {
		return nil
	}
	if min, okMin := number(values, "min_size"); okMin && desired < min {
		return fmt.Errorf("desired_capacity (%v) is below min_size (%v)", desired, min)
	}
	if max, okMax := number(values, "max_size"); okMax && desired > max {
		return fmt.Errorf("desired_capacity (%v) is above max_size (%v)", desired, max)
	}
	return nil
}

func number(values map[string]cty.Value, name string) (float64, bool) {
	v, ok := values[name]
	if !ok || v.IsNull() || refs.IsToken(v) || !v.Type().Equals(cty.Number) {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}
