// Package synth converts validated attribute sets into generic nested block
// trees, the declarative output unit consumed by the external renderer.
//
// The same recursive walk serves every resource type: scalars become leaf
// assignments, maps become nested blocks, lists of scalars become repeated
// leaf assignments, lists of maps become repeated blocks, and absent
// optionals are omitted. Type-specific behavior belongs in schemas, never
// here.
package synth
