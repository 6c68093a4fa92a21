package result

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Payload is the open mapping of additional fields a procedure may attach to
// a measurement or data entry. Values are restricted to a closed set of
// primitive kinds (string, number, bool, or a list of one of those) so the
// persisted form stays well-typed.
type Payload map[string]cty.Value

// Str wraps a string as a payload value.
func Str(s string) cty.Value { return cty.StringVal(s) }

// Int wraps an integer as a payload value.
func Int(i int64) cty.Value { return cty.NumberIntVal(i) }

// Num wraps a float as a payload value.
func Num(f float64) cty.Value { return cty.NumberFloatVal(f) }

// Bool wraps a boolean as a payload value.
func Bool(b bool) cty.Value { return cty.BoolVal(b) }

// Ints wraps a list of integers as a payload value.
func Ints(xs ...int64) cty.Value {
	if len(xs) == 0 {
		return cty.ListValEmpty(cty.Number)
	}
	vals := make([]cty.Value, len(xs))
	for i, x := range xs {
		vals[i] = cty.NumberIntVal(x)
	}
	return cty.ListVal(vals)
}

// Floats wraps a list of floats as a payload value.
func Floats(xs ...float64) cty.Value {
	if len(xs) == 0 {
		return cty.ListValEmpty(cty.Number)
	}
	vals := make([]cty.Value, len(xs))
	for i, x := range xs {
		vals[i] = cty.NumberFloatVal(x)
	}
	return cty.ListVal(vals)
}

// Strings wraps a list of strings as a payload value.
func Strings(xs ...string) cty.Value {
	if len(xs) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(xs))
	for i, x := range xs {
		vals[i] = cty.StringVal(x)
	}
	return cty.ListVal(vals)
}

// CheckValue rejects values outside the allowed primitive kinds.
func CheckValue(v cty.Value) error {
	if v.IsNull() || !v.IsKnown() {
		return fmt.Errorf("payload values must be known and non-null")
	}
	return CheckType(v.Type())
}

// CheckType rejects types outside the allowed primitive kinds.
func CheckType(t cty.Type) error {
	if t.IsPrimitiveType() {
		return nil
	}
	if t.IsListType() || t.IsSetType() {
		if t.ElementType().IsPrimitiveType() {
			return nil
		}
		return fmt.Errorf("list element type %s is not primitive", t.ElementType().FriendlyName())
	}
	if t.IsTupleType() {
		for _, et := range t.TupleElementTypes() {
			if !et.IsPrimitiveType() {
				return fmt.Errorf("tuple element type %s is not primitive", et.FriendlyName())
			}
		}
		return nil
	}
	return fmt.Errorf("type %s is not an allowed payload kind", t.FriendlyName())
}

func (p Payload) check() error {
	for name, v := range p {
		if err := CheckValue(v); err != nil {
			return fmt.Errorf("payload field %q: %w", name, err)
		}
	}
	return nil
}
