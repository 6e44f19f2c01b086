// Package arch composes many resource constructions into one named
// aggregate. An architecture is built tier by tier (network, storage,
// compute, ...), each tier reading the outputs earlier tiers placed into
// the aggregate, and the finished ArchitectureReference is immutable except
// through Override, ExtendWith and ComposeWith, which return new references
// that structurally share untouched slots.
package arch

import (
	"fmt"

	"github.com/vk/stackform/internal/refs"
	"github.com/vk/stackform/internal/validate"
)

// UnknownSlotError reports access to a component slot that is absent,
// either because it was never built or because its tier runs later. Forward
// references across tiers are not legal.
type UnknownSlotError struct {
	Arch string
	Slot string
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("architecture %s has no component %q", e.Arch, e.Slot)
}

// SlotConflictError reports an attempt to add a slot whose name is already
// taken.
type SlotConflictError struct {
	Arch string
	Slot string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("architecture %s already has a component %q", e.Arch, e.Slot)
}

// ArchitectureReference is the named aggregate handle. Components map slot
// names to resource references, nested architecture references, or slot
// maps. Slot names are stable strings chosen by the composer, never derived
// from runtime values.
type ArchitectureReference struct {
	typ   string
	name  string
	attrs *validate.Attributes

	slots map[string]any
	order []string

	outputs  map[string]refs.Token
	outOrder []string

	// building permits PublishOutput and addSlot during tier execution
	// only; the reference freezes before it is returned to the caller.
	building bool
}

// Type returns the architecture type.
func (a *ArchitectureReference) Type() string { return a.typ }

// Name returns the architecture instance name.
func (a *ArchitectureReference) Name() string { return a.name }

// Attributes returns the validated architecture-level attribute set.
func (a *ArchitectureReference) Attributes() *validate.Attributes { return a.attrs }

// Component returns the reference in the named slot. Absent slots fail
// fast: a skipped tier, a typo, and a forward reference all surface here.
func (a *ArchitectureReference) Component(slot string) (any, error) {
	v, ok := a.slots[slot]
	if !ok {
		return nil, &UnknownSlotError{Arch: a.addr(), Slot: slot}
	}
	return v, nil
}

// Resource returns the named slot as a resource reference, the common case
// for wiring one tier's outputs into the next.
func (a *ArchitectureReference) Resource(slot string) (*refs.ResourceReference, error) {
	v, err := a.Component(slot)
	if err != nil {
		return nil, err
	}
	ref, ok := v.(*refs.ResourceReference)
	if !ok {
		return nil, fmt.Errorf("architecture %s component %q is not a resource reference", a.addr(), slot)
	}
	return ref, nil
}

// Slots returns the occupied slot names in placement order.
func (a *ArchitectureReference) Slots() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Components returns a copy of the slot map.
func (a *ArchitectureReference) Components() map[string]any {
	out := make(map[string]any, len(a.slots))
	for k, v := range a.slots {
		out[k] = v
	}
	return out
}

// Output returns a published architecture output token, failing fast on
// undeclared names like resource references do.
func (a *ArchitectureReference) Output(field string) (refs.Token, error) {
	tok, ok := a.outputs[field]
	if !ok {
		return refs.Token{}, &refs.UnknownOutputError{Addr: a.addr(), Field: field}
	}
	return tok, nil
}

// Outputs returns a copy of the published output map.
func (a *ArchitectureReference) Outputs() map[string]refs.Token {
	out := make(map[string]refs.Token, len(a.outputs))
	for k, v := range a.outputs {
		out[k] = v
	}
	return out
}

// OutputNames returns published output names in publication order.
func (a *ArchitectureReference) OutputNames() []string {
	out := make([]string, len(a.outOrder))
	copy(out, a.outOrder)
	return out
}

// PublishOutput exposes a component's token as an architecture-level
// output. It is legal only while tiers are running; the schema's declared
// outputs and the published set must match exactly by the time composition
// finishes.
func (a *ArchitectureReference) PublishOutput(field string, tok refs.Token) error {
	if !a.building {
		return fmt.Errorf("architecture %s is frozen; outputs can only be published by tier builders", a.addr())
	}
	if _, dup := a.outputs[field]; dup {
		return fmt.Errorf("architecture %s output %q published twice", a.addr(), field)
	}
	a.outputs[field] = tok
	a.outOrder = append(a.outOrder, field)
	return nil
}

func (a *ArchitectureReference) addr() string {
	return a.typ + "." + a.name
}

func (a *ArchitectureReference) addSlot(slot string, v any) error {
	if _, dup := a.slots[slot]; dup {
		return &SlotConflictError{Arch: a.addr(), Slot: slot}
	}
	a.slots[slot] = v
	a.order = append(a.order, slot)
	return nil
}

// clone shares slot and output values with the original; only the maps and
// order slices are copied.
func (a *ArchitectureReference) clone() *ArchitectureReference {
	c := &ArchitectureReference{
		typ:      a.typ,
		name:     a.name,
		attrs:    a.attrs,
		slots:    make(map[string]any, len(a.slots)),
		order:    make([]string, len(a.order)),
		outputs:  make(map[string]refs.Token, len(a.outputs)),
		outOrder: make([]string, len(a.outOrder)),
	}
	for k, v := range a.slots {
		c.slots[k] = v
	}
	copy(c.order, a.order)
	for k, v := range a.outputs {
		c.outputs[k] = v
	}
	copy(c.outOrder, a.outOrder)
	return c
}

// Override returns a new reference identical to this one except that the
// named slot holds the builder's result. Every other slot is shared
// structurally. Overriding an absent slot is an UnknownSlotError, keeping
// override unambiguous.
func (a *ArchitectureReference) Override(slot string, build func(*ArchitectureReference) (any, error)) (*ArchitectureReference, error) {
	if _, ok := a.slots[slot]; !ok {
		return nil, &UnknownSlotError{Arch: a.addr(), Slot: slot}
	}
	v, err := build(a)
	if err != nil {
		return nil, fmt.Errorf("override of %s.%s failed: %w", a.addr(), slot, err)
	}
	c := a.clone()
	c.slots[slot] = v
	return c, nil
}

// ExtendWith returns a new reference with the given slots added. A name
// collision with an existing slot is an error; nothing is partially added.
func (a *ArchitectureReference) ExtendWith(slots map[string]any) (*ArchitectureReference, error) {
	for slot := range slots {
		if _, dup := a.slots[slot]; dup {
			return nil, &SlotConflictError{Arch: a.addr(), Slot: slot}
		}
	}
	c := a.clone()
	for _, slot := range sortedKeys(slots) {
		c.slots[slot] = slots[slot]
		c.order = append(c.order, slot)
	}
	return c, nil
}

// ComposeWith runs a builder against this reference and merges its returned
// slot map into a new reference. This is how one architecture wires in
// another's components.
func (a *ArchitectureReference) ComposeWith(build func(*ArchitectureReference) (map[string]any, error)) (*ArchitectureReference, error) {
	slots, err := build(a)
	if err != nil {
		return nil, fmt.Errorf("composition onto %s failed: %w", a.addr(), err)
	}
	return a.ExtendWith(slots)
}
