package envdefaults

import (
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML defaults table of the form:
//
//	production:
//	  aws_autoscaling_group:
//	    min_size: 2
//	    tags:
//	      managed_by: stackform
//
// Tiers absent from the file simply contribute no defaults.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML defaults table from bytes.
func Parse(data []byte) (*Table, error) {
	var doc map[string]map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode defaults table: %w", err)
	}

	tiers := make(map[Tier]map[string]map[string]cty.Value, len(doc))
	for tierName, byType := range doc {
		tier := Tier(tierName)
		tiers[tier] = make(map[string]map[string]cty.Value, len(byType))
		for typeName, attrs := range byType {
			converted := make(map[string]cty.Value, len(attrs))
			for name, raw := range attrs {
				v, err := goToCty(raw)
				if err != nil {
					return nil, fmt.Errorf("defaults %s.%s.%s: %w", tierName, typeName, name, err)
				}
				converted[name] = v
			}
			tiers[tier][typeName] = converted
		}
	}
	return NewTable(tiers), nil
}

// goToCty converts the plain Go values the YAML decoder produces into cty
// values. Only the kinds a defaults table can reasonably hold are accepted.
func goToCty(raw any) (cty.Value, error) {
	switch v := raw.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(v), nil
	case string:
		return cty.StringVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case []any:
		if len(v) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(v))
		for i, elem := range v {
			ev, err := goToCty(elem)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = ev
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(v) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(v))
		for name, elem := range v {
			ev, err := goToCty(elem)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[name] = ev
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value kind %T", raw)
	}
}
