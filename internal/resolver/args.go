package resolver

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/tileqc/internal/registry"
)

// ArgumentError reports a caller-supplied argument value the declared schema
// rejects: unknown name, missing required value, wrong type, or a value
// outside the argument's restriction.
type ArgumentError struct {
	Procedure string
	Argument  string
	Err       error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("procedure %q, argument %q: %v", e.Procedure, e.Argument, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// BindArguments applies defaults, converts the supplied values to the
// declared types, runs the per-argument restrictions against the session
// view, and decodes everything into a fresh input struct. It returns the
// struct and the fully resolved value map (the form recorded in the durable
// result). Like Resolve it is pure: no retries, no side effects.
func BindArguments(def *registry.Definition, values map[string]cty.Value, cc registry.CheckContext) (any, map[string]cty.Value, error) {
	for name := range values {
		if _, ok := def.Arg(name); !ok {
			return nil, nil, &ArgumentError{def.Name, name, fmt.Errorf("not a declared argument")}
		}
	}

	resolved := make(map[string]cty.Value, len(def.Args))
	for _, arg := range def.Args {
		raw, supplied := values[arg.Name]
		if !supplied {
			if arg.Required() {
				return nil, nil, &ArgumentError{def.Name, arg.Name, fmt.Errorf("required argument missing")}
			}
			raw = *arg.Default
		}
		val, err := convert.Convert(raw, arg.Type)
		if err != nil {
			return nil, nil, &ArgumentError{def.Name, arg.Name, fmt.Errorf("cannot convert to %s: %w", arg.Type.FriendlyName(), err)}
		}
		// Conversion passes nulls and unknowns through unchanged; neither is
		// a usable argument value, and restrictions assume neither.
		if val.IsNull() || !val.IsKnown() {
			return nil, nil, &ArgumentError{def.Name, arg.Name, fmt.Errorf("value must be known and non-null")}
		}
		if arg.Check != nil {
			if err := arg.Check.Validate(val, cc); err != nil {
				return nil, nil, &ArgumentError{def.Name, arg.Name, err}
			}
		}
		resolved[arg.Name] = val
	}

	input := def.NewInput()
	if err := decodeInput(def, input, resolved); err != nil {
		return nil, nil, err
	}
	return input, resolved, nil
}

// decodeInput fills the `qc`-tagged fields of the input struct from the
// resolved value map. Registration already guaranteed tag/schema parity and
// type compatibility.
func decodeInput(def *registry.Definition, input any, resolved map[string]cty.Value) error {
	inputValue := reflect.ValueOf(input).Elem()
	inputType := inputValue.Type()
	for i := 0; i < inputType.NumField(); i++ {
		field := inputType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagName := strings.Split(field.Tag.Get("qc"), ",")[0]
		if tagName == "" || tagName == "-" {
			continue
		}
		val, ok := resolved[tagName]
		if !ok {
			continue
		}
		if err := gocty.FromCtyValue(val, inputValue.Field(i).Addr().Interface()); err != nil {
			return &ArgumentError{def.Name, tagName, fmt.Errorf("decode into %s: %w", field.Name, err)}
		}
	}
	return nil
}
