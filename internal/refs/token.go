// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package refs

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Token is the symbolic placeholder for a single not-yet-known output
// value. The engine never resolves tokens; it only threads them, textually
// intact, into the block trees handed to the external renderer.
type Token struct {
	// Type and Name address the resource that will produce the value.
	Type string
	Name string
	// Field is the schema-declared output field.
	Field string
	// Data marks tokens produced by read-only lookups, rendered with the
	// "data." prefix.
	Data bool
}

// tokenCapsule lets tokens travel inside cty values, alongside ordinary
// attribute values, without being mistaken for strings.
var tokenCapsule = cty.Capsule("output token", reflect.TypeOf(Token{}))

// String renders the stable textual form of the token. This format is an
// external contract with the renderer; changing it breaks every authored
// declaration that embeds a token as plain text.
func (t Token) String() string {
	if t.Data {
		return fmt.Sprintf("data.%s.%s.%s", t.Type, t.Name, t.Field)
	}
	return fmt.Sprintf("%s.%s.%s", t.Type, t.Name, t.Field)
}

// Traversal returns the token as an HCL traversal, for rendering the
// declarative output as real references instead of quoted strings.
func (t Token) Traversal() hcl.Traversal {
	if t.Data {
		return hcl.Traversal{
			hcl.TraverseRoot{Name: "data"},
			hcl.TraverseAttr{Name: t.Type},
			hcl.TraverseAttr{Name: t.Name},
			hcl.TraverseAttr{Name: t.Field},
		}
	}
	return hcl.Traversal{
		hcl.TraverseRoot{Name: t.Type},
		hcl.TraverseAttr{Name: t.Name},
		hcl.TraverseAttr{Name: t.Field},
	}
}

// Value wraps the token in a cty capsule so it can stand in for a leaf
// attribute value.
func (t Token) Value() cty.Value {
	return cty.CapsuleVal(tokenCapsule, &t)
}

// IsToken reports whether the value carries an output token.
func IsToken(v cty.Value) bool {
	return v != cty.NilVal && !v.IsNull() && v.Type().Equals(tokenCapsule)
}

// FromValue unwraps a token from a capsule value.
func FromValue(v cty.Value) (Token, bool) {
	if !IsToken(v) {
		return Token{}, false
	}
	return *v.EncapsulatedValue().(*Token), true
}

// ParseToken accepts the textual token form back into a structured Token.
// It exists for boundaries that receive tokens as strings, e.g. defaults
// tables or hand-written declarations.
func ParseToken(s string) (Token, error) {
	parts := strings.Split(s, ".")
	switch {
	case len(parts) == 3:
		if err := checkTokenParts(s, parts); err != nil {
			return Token{}, err
		}
		return Token{Type: parts[0], Name: parts[1], Field: parts[2]}, nil
	case len(parts) == 4 && parts[0] == "data":
		if err := checkTokenParts(s, parts[1:]); err != nil {
			return Token{}, err
		}
		return Token{Type: parts[1], Name: parts[2], Field: parts[3], Data: true}, nil
	default:
		return Token{}, fmt.Errorf("malformed output token %q: want type.name.field or data.type.name.field", s)
	}
}

func checkTokenParts(s string, parts []string) error {
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("malformed output token %q: empty path segment", s)
		}
	}
	return nil
}
