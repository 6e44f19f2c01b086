package validate

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/schema"
)

func float(f float64) *float64 { return &f }
func intp(i int) *int          { return &i }

func portSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "port", Type: cty.Number, Required: true, Min: float(1), Max: float(65535)},
		},
	})
}

func TestValidate_PortInRangePasses(t *testing.T) {
	t.Parallel()

	attrs, err := Validate(portSchema(t), map[string]cty.Value{
		"port": cty.NumberIntVal(443),
	})
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(443), attrs.Get("port"))
}

func TestValidate_PortOutOfRangeFails(t *testing.T) {
	t.Parallel()

	_, err := Validate(portSchema(t), map[string]cty.Value{
		"port": cty.NumberIntVal(99999),
	})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Violations, 1)
	assert.Equal(t, "port", PathString(vErr.Violations[0].Path))
	assert.Contains(t, vErr.Violations[0].Constraint, "out of range 1-65535")
}

func TestValidate_MissingRequiredAttribute(t *testing.T) {
	t.Parallel()

	_, err := Validate(portSchema(t), map[string]cty.Value{})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Violations, 1)
	assert.Equal(t, "port", PathString(vErr.Violations[0].Path))
	assert.Equal(t, "required attribute is missing", vErr.Violations[0].Constraint)
}

func TestValidate_EnumMembership(t *testing.T) {
	t.Parallel()

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{
				Name: "tier",
				Type: cty.String,
				Allowed: []cty.Value{
					cty.StringVal("development"),
					cty.StringVal("staging"),
					cty.StringVal("production"),
				},
			},
		},
	})

	_, err := Validate(sch, map[string]cty.Value{"tier": cty.StringVal("qa")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `must be one of ["development", "staging", "production"]`)

	attrs, err := Validate(sch, map[string]cty.Value{"tier": cty.StringVal("staging")})
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("staging"), attrs.Get("tier"))
}

func TestValidate_BatchesEveryLeafViolation(t *testing.T) {
	t.Parallel()

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "name", Type: cty.String, Required: true},
			{Name: "port", Type: cty.Number, Min: float(1), Max: float(65535)},
			{Name: "region", Type: cty.String, Allowed: []cty.Value{cty.StringVal("eu-west-1")}},
		},
	})

	_, err := Validate(sch, map[string]cty.Value{
		"port":   cty.NumberIntVal(0),
		"region": cty.StringVal("mars-central-1"),
		"bogus":  cty.True,
	})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Violations, 4, "every violation must be reported in one pass")

	paths := make([]string, len(vErr.Violations))
	for i, v := range vErr.Violations {
		paths[i] = PathString(v.Path)
	}
	assert.ElementsMatch(t, []string{"name", "port", "region", "bogus"}, paths)
}

func TestValidate_UnknownAttributeRejected(t *testing.T) {
	t.Parallel()

	_, err := Validate(portSchema(t), map[string]cty.Value{
		"port": cty.NumberIntVal(80),
		"prot": cty.StringVal("tcp"),
	})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Violations, 1)
	assert.Equal(t, "prot", PathString(vErr.Violations[0].Path))
	assert.Equal(t, "not declared by the schema", vErr.Violations[0].Constraint)
}

func TestValidate_DefaultsSubstitutedAndAbsentOptionalsNull(t *testing.T) {
	t.Parallel()

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "engine", Type: cty.String, Default: cty.StringVal("postgres")},
			{Name: "comment", Type: cty.String},
		},
	})

	attrs, err := Validate(sch, nil)
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("postgres"), attrs.Get("engine"))
	assert.True(t, attrs.Get("comment").IsNull())
	assert.False(t, attrs.Has("comment"))
	assert.True(t, attrs.Has("engine"))
}

func TestValidate_DefaultsAreValidatedToo(t *testing.T) {
	t.Parallel()

	// The default comes from the schema, and schema compilation already
	// checked its type; here an allowed-list narrows it further at
	// validation time when the caller overrides with a bad value.
	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "size", Type: cty.Number, Default: cty.NumberIntVal(2), Min: float(1)},
		},
	})

	_, err := Validate(sch, map[string]cty.Value{"size": cty.NumberIntVal(0)})
	require.Error(t, err)

	attrs, err := Validate(sch, nil)
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(2), attrs.Get("size"))
}

func TestValidate_StringLengthAndPattern(t *testing.T) {
	t.Parallel()

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "name", Type: cty.String, MinLength: intp(3), MaxLength: intp(10), Pattern: `^[a-z-]+$`},
		},
	})

	_, err := Validate(sch, map[string]cty.Value{"name": cty.StringVal("ab")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length 2 is below minimum 3")

	_, err = Validate(sch, map[string]cty.Value{"name": cty.StringVal("Has Spaces")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must match pattern")

	_, err = Validate(sch, map[string]cty.Value{"name": cty.StringVal("web-server")})
	require.NoError(t, err)
}

func TestValidate_NestedRepeatedBlockPathsCarryIndices(t *testing.T) {
	t.Parallel()

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{
				Name:     "tag",
				Repeated: true,
				Nested: &schema.Spec{
					Attributes: []schema.AttributeSpec{
						{Name: "key", Type: cty.String, Required: true},
						{Name: "value", Type: cty.String, Required: true},
					},
				},
			},
		},
	})

	_, err := Validate(sch, map[string]cty.Value{
		"tag": cty.TupleVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{"key": cty.StringVal("env"), "value": cty.StringVal("prod")}),
			cty.ObjectVal(map[string]cty.Value{"key": cty.StringVal("team")}),
		}),
	})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Violations, 1)
	assert.Equal(t, "tag[1].value", PathString(vErr.Violations[0].Path))
}

func TestValidate_CrossFieldRulesRunAfterLeafChecks(t *testing.T) {
	t.Parallel()

	desiredWithinBounds := func(values map[string]cty.Value) error {
		min, _ := values["min_size"].AsBigFloat().Float64()
		max, _ := values["max_size"].AsBigFloat().Float64()
		desired, _ := values["desired_capacity"].AsBigFloat().Float64()
		if desired < min || desired > max {
			return fmt.Errorf("desired_capacity %v is outside [%v, %v]", desired, min, max)
		}
		return nil
	}

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "min_size", Type: cty.Number, Required: true},
			{Name: "max_size", Type: cty.Number, Required: true},
			{Name: "desired_capacity", Type: cty.Number, Required: true},
		},
		Rules: []schema.Rule{{Name: "desired_within_bounds", Check: desiredWithinBounds}},
	})

	_, err := Validate(sch, map[string]cty.Value{
		"min_size":         cty.NumberIntVal(2),
		"max_size":         cty.NumberIntVal(5),
		"desired_capacity": cty.NumberIntVal(9),
	})
	require.Error(t, err)

	var rErr *RuleError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "desired_within_bounds", rErr.Rule)

	_, err = Validate(sch, map[string]cty.Value{
		"min_size":         cty.NumberIntVal(2),
		"max_size":         cty.NumberIntVal(5),
		"desired_capacity": cty.NumberIntVal(3),
	})
	require.NoError(t, err)
}

func TestValidate_LeafViolationsPreemptRules(t *testing.T) {
	t.Parallel()

	ruleRan := false
	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "min_size", Type: cty.Number, Required: true},
		},
		Rules: []schema.Rule{{
			Name: "never_reached",
			Check: func(map[string]cty.Value) error {
				ruleRan = true
				return errors.New("boom")
			},
		}},
	})

	_, err := Validate(sch, nil)
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr, "leaf violations must surface as a ValidationError, not a RuleError")
	assert.False(t, ruleRan, "rules must not run when leaf validation failed")
}

func TestValidate_TypeConversionAndMismatch(t *testing.T) {
	t.Parallel()

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "count", Type: cty.Number},
		},
	})

	// cty converts a numeric string to number. RawEquals, not deep equality:
	// converted numbers carry a different big.Float precision.
	attrs, err := Validate(sch, map[string]cty.Value{"count": cty.StringVal("3")})
	require.NoError(t, err)
	assert.True(t, attrs.Get("count").RawEquals(cty.NumberIntVal(3)))

	_, err = Validate(sch, map[string]cty.Value{"count": cty.True})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be number")
}

func TestValidate_DeferredValuesSkipLeafChecks(t *testing.T) {
	t.Parallel()

	// A capsule value stands in for a not-yet-known output; its concrete
	// value cannot be checked at construction time, so it passes through.
	type deferred struct{ addr string }
	capsule := cty.Capsule("test deferred", reflect.TypeOf(deferred{}))
	token := cty.CapsuleVal(capsule, &deferred{addr: "aws_db_instance.main.endpoint"})

	attrs, err := Validate(portSchema(t), map[string]cty.Value{"port": token})
	require.NoError(t, err)
	assert.True(t, attrs.Get("port").RawEquals(token))
}

func TestValidate_TokenElementDoesNotExemptConcreteSiblings(t *testing.T) {
	t.Parallel()

	type deferred struct{ addr string }
	capsule := cty.Capsule("pending output", reflect.TypeOf(deferred{}))
	token := cty.CapsuleVal(capsule, &deferred{addr: "aws_kms_key.main.arn"})

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{
				Name:     "tag",
				Repeated: true,
				Nested: &schema.Spec{
					Attributes: []schema.AttributeSpec{
						{Name: "key", Type: cty.String, Required: true},
						{Name: "port", Type: cty.Number, Min: float(1), Max: float(65535)},
					},
				},
			},
		},
	})

	// Element 0 defers its key; element 1 is fully concrete and wrong on
	// both counts. The token must not shield it.
	_, err := Validate(sch, map[string]cty.Value{
		"tag": cty.TupleVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{"key": token}),
			cty.ObjectVal(map[string]cty.Value{"port": cty.NumberIntVal(99999)}),
		}),
	})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	paths := make([]string, len(vErr.Violations))
	for i, v := range vErr.Violations {
		paths[i] = PathString(v.Path)
	}
	assert.ElementsMatch(t, []string{"tag[1].key", "tag[1].port"}, paths)
}

func TestValidate_TokensInLeafListsExemptOnlyThemselves(t *testing.T) {
	t.Parallel()

	type deferred struct{ addr string }
	capsule := cty.Capsule("pending output", reflect.TypeOf(deferred{}))
	token := cty.CapsuleVal(capsule, &deferred{addr: "aws_db_instance.main.port"})

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "ports", Type: cty.List(cty.Number)},
		},
	})

	_, err := Validate(sch, map[string]cty.Value{
		"ports": cty.TupleVal([]cty.Value{token, cty.StringVal("http")}),
	})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Violations, 1)
	assert.Equal(t, "ports[1]", PathString(vErr.Violations[0].Path))
	assert.Contains(t, vErr.Violations[0].Constraint, "must be number")

	attrs, err := Validate(sch, map[string]cty.Value{
		"ports": cty.TupleVal([]cty.Value{token, cty.StringVal("443")}),
	})
	require.NoError(t, err)
	got := attrs.Get("ports").AsValueSlice()
	require.Len(t, got, 2)
	assert.True(t, got[0].RawEquals(token))
	assert.True(t, got[1].RawEquals(cty.NumberIntVal(443)))
}

func TestAttributes_GetPanicsOnUndeclared(t *testing.T) {
	t.Parallel()

	attrs, err := Validate(portSchema(t), map[string]cty.Value{"port": cty.NumberIntVal(80)})
	require.NoError(t, err)

	assert.Panics(t, func() { attrs.Get("does_not_exist") })
}
