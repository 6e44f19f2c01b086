// Package refs implements reference handles and symbolic output tokens.
//
// A resource's output values do not exist until an external renderer
// provisions the real resource, so references expose them as tokens with
// the stable textual form "type.name.field" ("data.type.name.field" for
// lookups). Tokens are a distinct engine value type carried inside a cty
// capsule, not bare strings, so that a reference to an undeclared output is
// caught at construction time instead of surfacing as a malformed string at
// render time.
package refs
