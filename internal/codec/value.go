package codec

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/result"
)

// The persisted form stores argument and payload values as plain YAML
// scalars and sequences. The in-memory form is cty values restricted to the
// closed primitive kinds of the result model, so the mapping is total in
// both directions.

func encodeValueMap(m map[string]cty.Value) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for name, v := range m {
		enc, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = enc
	}
	return out, nil
}

func encodeValue(v cty.Value) (any, error) {
	if err := result.CheckValue(v); err != nil {
		return nil, err
	}
	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString(), nil
	case t == cty.Bool:
		return v.True(), nil
	case t == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil
	default: // list, set or tuple of primitives
		var out []any
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			enc, err := encodeValue(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, enc)
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	}
}

func decodeValueMap(m map[string]any) (result.Payload, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(result.Payload, len(m))
	for name, raw := range m {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func decodeValue(raw any) (cty.Value, error) {
	switch x := raw.(type) {
	case string:
		return cty.StringVal(x), nil
	case bool:
		return cty.BoolVal(x), nil
	case int:
		return cty.NumberIntVal(int64(x)), nil
	case int64:
		return cty.NumberIntVal(x), nil
	case uint64:
		return cty.NumberUIntVal(x), nil
	case float64:
		return cty.NumberFloatVal(x), nil
	case []any:
		if len(x) == 0 {
			return cty.ListValEmpty(cty.Number), nil
		}
		elems := make([]cty.Value, len(x))
		for i, e := range x {
			ev, err := decodeValue(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = ev
		}
		sameType := true
		for _, ev := range elems[1:] {
			if !ev.Type().Equals(elems[0].Type()) {
				sameType = false
				break
			}
		}
		if sameType {
			return cty.ListVal(elems), nil
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported persisted value of type %T", raw)
	}
}
