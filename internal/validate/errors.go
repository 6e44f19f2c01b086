package validate

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Violation is a single leaf-level schema failure: one attribute whose
// value (or absence) breaks one declared constraint.
type Violation struct {
	// Path locates the offending attribute, including list indices.
	Path cty.Path
	// Constraint names what was expected, e.g. "required" or "range 1-65535".
	Constraint string
	// Value is the offending value; cty.NilVal for missing attributes.
	Value cty.Value
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", PathString(v.Path), v.Constraint)
}

// ValidationError aggregates every leaf violation found in one Validate
// call. No partial attribute set accompanies it.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "validation failed: " + e.Violations[0].Error()
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("validation failed with %d problems:\n- %s", len(e.Violations), strings.Join(msgs, "\n- "))
}

// RuleError reports a cross-field rule violation. It is raised immediately
// for the first failing rule, after all leaf checks passed.
type RuleError struct {
	Rule   string
	Reason error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q violated: %v", e.Rule, e.Reason)
}

func (e *RuleError) Unwrap() error {
	return e.Reason
}

// PathString renders a cty.Path as a dotted attribute path with list
// indices, e.g. "tag[1].key".
func PathString(path cty.Path) string {
	var sb strings.Builder
	for _, step := range path {
		switch s := step.(type) {
		case cty.GetAttrStep:
			if sb.Len() > 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(s.Name)
		case cty.IndexStep:
			if s.Key.Type().Equals(cty.Number) {
				idx, _ := s.Key.AsBigFloat().Int64()
				fmt.Fprintf(&sb, "[%d]", idx)
			} else {
				fmt.Fprintf(&sb, "[%q]", s.Key.AsString())
			}
		}
	}
	return sb.String()
}
