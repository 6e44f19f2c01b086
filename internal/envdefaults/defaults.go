// Package envdefaults merges environment-tiered default attribute maps into
// raw attribute input before validation. The validator never sees tier
// logic; the resolver never sees the schema.
package envdefaults

import (
	"github.com/zclconf/go-cty/cty"
)

// Tier identifies one environment tier in the defaults table.
type Tier string

const (
	TierDevelopment Tier = "development"
	TierStaging     Tier = "staging"
	TierProduction  Tier = "production"
)

// Table holds partial attribute maps keyed by tier, then by resource type.
// A nil Table resolves every input to itself.
type Table struct {
	tiers map[Tier]map[string]map[string]cty.Value
}

// NewTable builds a Table from tier -> resource type -> partial attributes.
func NewTable(tiers map[Tier]map[string]map[string]cty.Value) *Table {
	return &Table{tiers: tiers}
}

// Resolve merges the defaults registered for (tier, resourceType) under the
// raw input. The raw map is not mutated.
func (t *Table) Resolve(tier Tier, resourceType string, raw map[string]cty.Value) map[string]cty.Value {
	if t == nil {
		return copyMap(raw)
	}
	byType, ok := t.tiers[tier]
	if !ok {
		return copyMap(raw)
	}
	defaults, ok := byType[resourceType]
	if !ok {
		return copyMap(raw)
	}
	return Merge(defaults, raw)
}

// Merge deep-merges a defaults map under a raw input map. Fields present in
// both resolve to the raw value, except nested maps, which merge
// recursively. Scalar and list fields are replaced wholesale.
func Merge(defaults, raw map[string]cty.Value) map[string]cty.Value {
	merged := make(map[string]cty.Value, len(defaults)+len(raw))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, rv := range raw {
		dv, both := merged[k]
		if both && isMapping(dv) && isMapping(rv) {
			merged[k] = cty.ObjectVal(Merge(dv.AsValueMap(), rv.AsValueMap()))
			continue
		}
		merged[k] = rv
	}
	return merged
}

func isMapping(v cty.Value) bool {
	if v == cty.NilVal || v.IsNull() {
		return false
	}
	t := v.Type()
	return t.IsObjectType() || t.IsMapType()
}

func copyMap(m map[string]cty.Value) map[string]cty.Value {
	out := make(map[string]cty.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
