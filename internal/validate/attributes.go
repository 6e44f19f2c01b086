package validate

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/schema"
)

// Attributes is the validated, defaulted result of applying a schema to a
// raw attribute map. Every declared attribute is present: optional
// attributes that were absent and had no default hold a typed null.
// Attributes is never mutated after construction.
type Attributes struct {
	schema *schema.Schema
	values map[string]cty.Value
}

// Schema returns the schema these attributes were validated against.
func (a *Attributes) Schema() *schema.Schema {
	return a.schema
}

// Get returns the value of a declared attribute. Asking for an undeclared
// attribute is a programmer error and panics, matching the guarantee that
// validated attributes are complete.
func (a *Attributes) Get(name string) cty.Value {
	v, ok := a.values[name]
	if !ok {
		panic("validate: attribute " + name + " is not declared by the schema")
	}
	return v
}

// Has reports whether the named attribute is declared and non-null.
func (a *Attributes) Has(name string) bool {
	v, ok := a.values[name]
	return ok && !v.IsNull()
}

// Values returns a copy of the full attribute map.
func (a *Attributes) Values() map[string]cty.Value {
	out := make(map[string]cty.Value, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}
