// Package schema defines the attribute schema model: the typed, immutable
// description of a resource type's accepted attribute tree, its declared
// output fields, and the cross-field rules that must hold over a fully
// defaulted attribute set.
//
// A Schema is defined once per resource type, at load time, and shared by
// every instance of that type. It carries no per-instance state and is never
// mutated after Define returns.
package schema
