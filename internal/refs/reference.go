package refs

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/validate"
)

// UnknownOutputError reports access to an output field the schema does not
// declare. It fails at access time so that typos surface where they are
// written, not as malformed strings at render time.
type UnknownOutputError struct {
	Addr  string
	Field string
}

func (e *UnknownOutputError) Error() string {
	return fmt.Sprintf("%s does not declare output %q", e.Addr, e.Field)
}

// ResourceReference is the handle a caller keeps after constructing a
// resource or data source. Known inputs are exposed directly; outputs are
// symbolic tokens. A reference is read-only after creation.
type ResourceReference struct {
	typ     string
	name    string
	attrs   *validate.Attributes
	outputs map[string]Token
	order   []string
	data    bool
}

// NewResource builds the reference for a managed resource. Its outputs map
// holds exactly the schema-declared output fields.
func NewResource(typ, name string, attrs *validate.Attributes, declaredOutputs []string) *ResourceReference {
	return newReference(typ, name, attrs, declaredOutputs, false)
}

// NewDataSource builds the reference for a read-only lookup; its tokens
// carry the "data." prefix.
func NewDataSource(typ, name string, attrs *validate.Attributes, declaredOutputs []string) *ResourceReference {
	return newReference(typ, name, attrs, declaredOutputs, true)
}

func newReference(typ, name string, attrs *validate.Attributes, declaredOutputs []string, data bool) *ResourceReference {
	outputs := make(map[string]Token, len(declaredOutputs))
	order := make([]string, 0, len(declaredOutputs))
	for _, field := range declaredOutputs {
		outputs[field] = Token{Type: typ, Name: name, Field: field, Data: data}
		order = append(order, field)
	}
	return &ResourceReference{
		typ:     typ,
		name:    name,
		attrs:   attrs,
		outputs: outputs,
		order:   order,
		data:    data,
	}
}

// Type returns the resource type.
func (r *ResourceReference) Type() string { return r.typ }

// Name returns the instance name.
func (r *ResourceReference) Name() string { return r.name }

// IsDataSource reports whether the reference came from a read-only lookup.
func (r *ResourceReference) IsDataSource() bool { return r.data }

// Addr returns the renderer-addressable form, "type.name" or
// "data.type.name".
func (r *ResourceReference) Addr() string {
	if r.data {
		return fmt.Sprintf("data.%s.%s", r.typ, r.name)
	}
	return fmt.Sprintf("%s.%s", r.typ, r.name)
}

// Attributes returns the validated attribute set this reference was built
// from.
func (r *ResourceReference) Attributes() *validate.Attributes { return r.attrs }

// Output returns the token for a declared output field, or an
// UnknownOutputError for anything else.
func (r *ResourceReference) Output(field string) (Token, error) {
	tok, ok := r.outputs[field]
	if !ok {
		return Token{}, &UnknownOutputError{Addr: r.Addr(), Field: field}
	}
	return tok, nil
}

// OutputValue is Output wrapped as a cty value, for threading a token
// directly into another resource's raw attributes.
func (r *ResourceReference) OutputValue(field string) (cty.Value, error) {
	tok, err := r.Output(field)
	if err != nil {
		return cty.NilVal, err
	}
	return tok.Value(), nil
}

// Outputs returns a copy of the full output map: exactly the declared
// fields, no more, no fewer.
func (r *ResourceReference) Outputs() map[string]Token {
	out := make(map[string]Token, len(r.outputs))
	for k, v := range r.outputs {
		out[k] = v
	}
	return out
}

// OutputNames returns the declared output fields in declaration order.
func (r *ResourceReference) OutputNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
