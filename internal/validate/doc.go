// Package validate applies an attribute schema to a raw attribute map.
//
// Leaf checks (presence, type, enum membership, numeric range, string
// pattern and length) are collected across the whole tree and reported
// together in one ValidationError, so a caller sees every problem at once.
// Cross-field rules run afterwards, in declaration order, over the fully
// defaulted attribute set; the first rule violation aborts.
//
// Values carrying deferred reference tokens (capsule values) pass leaf
// checks unchecked: their concrete value only exists after an external
// renderer provisions the referenced resource.
package validate
