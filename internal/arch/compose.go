package arch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/stackform/internal/refs"
	"github.com/vk/stackform/internal/validate"
)

// Tier is one ordered construction step of an architecture. Build receives
// the aggregate as assembled so far, so it can read earlier tiers' outputs;
// later tiers' slots are simply absent. Skip, when set, lets validated
// attributes toggle the tier off entirely.
type Tier struct {
	// Slot names where Build's result lands, unless Build returns a slot
	// map, in which case each entry lands under its own key.
	Slot string
	// Skip reports whether this tier should be left out. A skipped tier
	// leaves its slot absent, not null.
	Skip func(attrs *validate.Attributes) bool
	// Build constructs the tier's components. It may return a single
	// reference or a map of slot name to reference.
	Build func(ref *ArchitectureReference, attrs *validate.Attributes) (any, error)
}

// TierError wraps a tier builder failure with the tier that raised it.
type TierError struct {
	Slot string
	Err  error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("tier %q failed: %v", e.Slot, e.Err)
}

func (e *TierError) Unwrap() error {
	return e.Err
}

// Build assembles an architecture from validated attributes and an ordered
// tier list. Composition is all-or-nothing: the first tier failure aborts
// and no partially built reference escapes. On success the returned
// reference is frozen and its published outputs are checked against the
// schema's declared outputs.
func Build(typ, name string, attrs *validate.Attributes, tiers []Tier) (*ArchitectureReference, error) {
	ref := &ArchitectureReference{
		typ:      typ,
		name:     name,
		attrs:    attrs,
		slots:    make(map[string]any),
		outputs:  make(map[string]refs.Token),
		building: true,
	}

	for _, tier := range tiers {
		if tier.Skip != nil && tier.Skip(attrs) {
			continue
		}
		result, err := tier.Build(ref, attrs)
		if err != nil {
			return nil, &TierError{Slot: tier.Slot, Err: err}
		}
		if slots, ok := result.(map[string]any); ok {
			for _, slot := range sortedKeys(slots) {
				if err := ref.addSlot(slot, slots[slot]); err != nil {
					return nil, &TierError{Slot: tier.Slot, Err: err}
				}
			}
			continue
		}
		if err := ref.addSlot(tier.Slot, result); err != nil {
			return nil, &TierError{Slot: tier.Slot, Err: err}
		}
	}

	ref.building = false

	if err := checkOutputParity(ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// checkOutputParity verifies the published outputs are exactly the
// schema-declared ones, in the same spirit as the schema registry's
// manifest/rule parity check.
func checkOutputParity(ref *ArchitectureReference) error {
	declared := make(map[string]struct{})
	for _, name := range ref.attrs.Schema().Outputs() {
		declared[name] = struct{}{}
	}
	var errs []string
	for _, name := range ref.attrs.Schema().Outputs() {
		if _, ok := ref.outputs[name]; !ok {
			errs = append(errs, fmt.Sprintf("declared output %q was never published", name))
		}
	}
	for _, name := range ref.outOrder {
		if _, ok := declared[name]; !ok {
			errs = append(errs, fmt.Sprintf("published output %q is not declared by the schema", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("architecture %s output mismatch:\n- %s", ref.addr(), strings.Join(errs, "\n- "))
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
