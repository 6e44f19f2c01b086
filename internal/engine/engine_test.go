package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackform/internal/arch"
	"github.com/vk/stackform/internal/envdefaults"
	"github.com/vk/stackform/internal/refs"
	"github.com/vk/stackform/internal/schema"
	"github.com/vk/stackform/internal/session"
	"github.com/vk/stackform/internal/validate"
)

func float(f float64) *float64 { return &f }

func dbSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "engine", Type: cty.String, Required: true},
			{Name: "port", Type: cty.Number, Default: cty.NumberIntVal(5432), Min: float(1), Max: float(65535)},
			{Name: "multi_az", Type: cty.Bool, Default: cty.False},
		},
		Outputs: []string{"endpoint", "arn"},
	})
}

func TestResource_FullPipeline(t *testing.T) {
	t.Parallel()

	sess := session.New()
	eng := New(sess, nil, envdefaults.TierDevelopment)

	ref, err := eng.Resource(context.Background(), "aws_db_instance", "main", dbSchema(t), map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
	})
	require.NoError(t, err)

	assert.Equal(t, "aws_db_instance.main", ref.Addr())
	assert.Equal(t, []string{"endpoint", "arn"}, ref.OutputNames())
	assert.Equal(t, cty.NumberIntVal(5432), ref.Attributes().Get("port"))

	nodes := sess.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "resource", nodes[0].Type)
	assert.Equal(t, []string{"aws_db_instance", "main"}, nodes[0].Labels)
}

func TestResource_DuplicateNameFails(t *testing.T) {
	t.Parallel()

	sess := session.New()
	eng := New(sess, nil, envdefaults.TierDevelopment)
	ctx := context.Background()

	_, err := eng.Resource(ctx, "db", "main", dbSchema(t), map[string]cty.Value{"engine": cty.StringVal("postgres")})
	require.NoError(t, err)

	_, err = eng.Resource(ctx, "db", "main", dbSchema(t), map[string]cty.Value{"engine": cty.StringVal("mysql")})
	require.Error(t, err)

	var dup *session.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "db.main", dup.Addr)

	assert.Len(t, sess.Nodes(), 1, "the failed declaration must not emit a block")
}

func TestResource_ValidationFailureEmitsNothing(t *testing.T) {
	t.Parallel()

	sess := session.New()
	eng := New(sess, nil, envdefaults.TierDevelopment)

	_, err := eng.Resource(context.Background(), "aws_db_instance", "main", dbSchema(t), map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
		"port":   cty.NumberIntVal(99999),
	})
	require.Error(t, err)

	var vErr *validate.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, sess.Nodes())
}

func TestResource_FailedDeclarationReleasesTheName(t *testing.T) {
	t.Parallel()

	sess := session.New()
	eng := New(sess, nil, envdefaults.TierDevelopment)
	ctx := context.Background()

	sch := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "zones", Type: cty.DynamicPseudoType},
		},
	})

	// A set value passes dynamic-typed validation but cannot synthesize.
	_, err := eng.Resource(ctx, "aws_autoscaling_group", "main", sch, map[string]cty.Value{
		"zones": cty.SetVal([]cty.Value{cty.StringVal("eu-west-1a")}),
	})
	require.Error(t, err)
	assert.Empty(t, sess.Nodes())

	// The corrected re-invocation under the same name must succeed.
	_, err = eng.Resource(ctx, "aws_autoscaling_group", "main", sch, map[string]cty.Value{
		"zones": cty.TupleVal([]cty.Value{cty.StringVal("eu-west-1a")}),
	})
	require.NoError(t, err)
	assert.Len(t, sess.Nodes(), 1)
}

func TestArchitecture_FailedCompositionReleasesTheName(t *testing.T) {
	t.Parallel()

	sess := session.New()
	eng := New(sess, nil, envdefaults.TierDevelopment)
	ctx := context.Background()

	archSchema := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "engine", Type: cty.String, Required: true},
		},
	})

	tiers := []arch.Tier{{
		Slot: "database",
		Build: func(ref *arch.ArchitectureReference, attrs *validate.Attributes) (any, error) {
			if attrs.Get("engine").AsString() == "oracle" {
				return nil, errors.New("unsupported engine")
			}
			return "db", nil
		},
	}}

	_, err := eng.Architecture(ctx, "web_service", "shop", archSchema, tiers, map[string]cty.Value{
		"engine": cty.StringVal("oracle"),
	})
	require.Error(t, err)

	var tErr *arch.TierError
	require.ErrorAs(t, err, &tErr)

	_, err = eng.Architecture(ctx, "web_service", "shop", archSchema, tiers, map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
	})
	require.NoError(t, err, "a failed composition must not keep the name claimed")
}

func TestResource_TierDefaultsApplyBeforeValidation(t *testing.T) {
	t.Parallel()

	table := envdefaults.NewTable(map[envdefaults.Tier]map[string]map[string]cty.Value{
		envdefaults.TierProduction: {
			"aws_db_instance": {
				"multi_az": cty.True,
				"port":     cty.NumberIntVal(5433),
			},
		},
	})

	sess := session.New()
	eng := New(sess, table, envdefaults.TierProduction)

	ref, err := eng.Resource(context.Background(), "aws_db_instance", "main", dbSchema(t), map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
		"port":   cty.NumberIntVal(6000), // explicit input beats the tier default
	})
	require.NoError(t, err)

	assert.Equal(t, cty.True, ref.Attributes().Get("multi_az"))
	assert.Equal(t, cty.NumberIntVal(6000), ref.Attributes().Get("port"))
}

func TestDataSource_SharesNamespaceMarkers(t *testing.T) {
	t.Parallel()

	sess := session.New()
	eng := New(sess, nil, envdefaults.TierDevelopment)
	ctx := context.Background()

	ref, err := eng.DataSource(ctx, "aws_db_instance", "main", dbSchema(t), map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
	})
	require.NoError(t, err)
	assert.Equal(t, "data.aws_db_instance.main", ref.Addr())

	tok, err := ref.Output("endpoint")
	require.NoError(t, err)
	assert.Equal(t, "data.aws_db_instance.main.endpoint", tok.String())

	// A resource with the same type and name is a distinct address.
	_, err = eng.Resource(ctx, "aws_db_instance", "main", dbSchema(t), map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
	})
	require.NoError(t, err)

	nodes := sess.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "data", nodes[0].Type)
	assert.Equal(t, "resource", nodes[1].Type)
}

func TestResource_TokenThreadsBetweenDeclarations(t *testing.T) {
	t.Parallel()

	sess := session.New()
	eng := New(sess, nil, envdefaults.TierDevelopment)
	ctx := context.Background()

	db, err := eng.Resource(ctx, "aws_db_instance", "main", dbSchema(t), map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
	})
	require.NoError(t, err)

	webSchema := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "db_endpoint", Type: cty.String, Required: true},
		},
	})
	endpoint, err := db.OutputValue("endpoint")
	require.NoError(t, err)

	_, err = eng.Resource(ctx, "aws_instance", "web", webSchema, map[string]cty.Value{
		"db_endpoint": endpoint,
	})
	require.NoError(t, err)

	nodes := sess.Nodes()
	require.Len(t, nodes, 2)
	web := nodes[1]
	require.Len(t, web.Attrs, 1)

	tok, ok := refs.FromValue(web.Attrs[0].Value)
	require.True(t, ok, "the emitted block must carry the token, not a resolved value")
	assert.Equal(t, "aws_db_instance.main.endpoint", tok.String())
}

func TestArchitecture_ComposesThroughTheSamePipeline(t *testing.T) {
	t.Parallel()

	sess := session.New()
	eng := New(sess, nil, envdefaults.TierDevelopment)
	ctx := context.Background()

	archSchema := schema.MustDefine(schema.Spec{
		Attributes: []schema.AttributeSpec{
			{Name: "engine", Type: cty.String, Required: true},
		},
		Outputs: []string{"db_endpoint"},
	})

	tiers := []arch.Tier{
		{
			Slot: "database",
			Build: func(ref *arch.ArchitectureReference, attrs *validate.Attributes) (any, error) {
				db, err := eng.Resource(ctx, "aws_db_instance", "shop-db", dbSchema(t), map[string]cty.Value{
					"engine": attrs.Get("engine"),
				})
				if err != nil {
					return nil, err
				}
				tok, err := db.Output("endpoint")
				if err != nil {
					return nil, err
				}
				if err := ref.PublishOutput("db_endpoint", tok); err != nil {
					return nil, err
				}
				return db, nil
			},
		},
	}

	ref, err := eng.Architecture(ctx, "web_service", "shop", archSchema, tiers, map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
	})
	require.NoError(t, err)

	tok, err := ref.Output("db_endpoint")
	require.NoError(t, err)
	assert.Equal(t, "aws_db_instance.shop-db.endpoint", tok.String())

	// The architecture claims its own name and the tier's resource emitted
	// a block through the shared session.
	require.Len(t, sess.Nodes(), 1)
	assert.Equal(t, []string{"aws_db_instance", "shop-db"}, sess.Nodes()[0].Labels)

	_, err = eng.Architecture(ctx, "web_service", "shop", archSchema, tiers, map[string]cty.Value{
		"engine": cty.StringVal("postgres"),
	})
	require.Error(t, err, "architecture names share the session namespace")
}
