package registry

import (
	"context"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/tileqc/internal/hw"
	"github.com/vk/tileqc/internal/result"
)

var (
	ctxType      = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType      = reflect.TypeOf((*error)(nil)).Elem()
	recorderType = reflect.TypeOf((*result.Recorder)(nil))
	iterateType  = reflect.TypeOf(hw.Iterate(nil))
	historyType  = reflect.TypeOf([]*result.ProcedureResult(nil))
)

// validate performs the strict registration-time check between a procedure's
// declared argument schema and its Go structs and function signature. It
// checks both the presence of inputs and the compatibility of their types.
func validate(def *Definition) *ConfigurationError {
	if def.Name == "" {
		return confErrf("", "definition has no name")
	}
	if def.Version == "" {
		return confErrf(def.Name, "definition has no version")
	}
	if def.NewInput == nil || def.NewDeps == nil || def.Fn == nil {
		return confErrf(def.Name, "NewInput, NewDeps and Fn are all required")
	}

	seen := make(map[string]struct{}, len(def.Args))
	for _, arg := range def.Args {
		if arg.Name == "" {
			return confErrf(def.Name, "argument with empty name")
		}
		if _, dup := seen[arg.Name]; dup {
			return confErrf(def.Name, "argument %q declared twice", arg.Name)
		}
		seen[arg.Name] = struct{}{}
		if arg.Description == "" {
			return confErrf(def.Name, "argument %q has no description", arg.Name)
		}
		if err := result.CheckType(arg.Type); err != nil {
			return confErrf(def.Name, "argument %q: %v", arg.Name, err)
		}
		if arg.Default != nil {
			if _, err := convert.Convert(*arg.Default, arg.Type); err != nil {
				return confErrf(def.Name, "argument %q: default not convertible to %s: %v",
					arg.Name, arg.Type.FriendlyName(), err)
			}
		}
	}

	inputType, err := structType(def, def.NewInput(), "NewInput")
	if err != nil {
		return err
	}
	if cerr := validateInputStruct(def, inputType); cerr != nil {
		return cerr
	}

	depsType, err := structType(def, def.NewDeps(), "NewDeps")
	if err != nil {
		return err
	}
	if cerr := validateDepsStruct(def, depsType); cerr != nil {
		return cerr
	}

	return validateFn(def, depsType, inputType)
}

func structType(def *Definition, v any, what string) (reflect.Type, *ConfigurationError) {
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, confErrf(def.Name, "%s must return a pointer to a struct", what)
	}
	return t.Elem(), nil
}

// validateInputStruct enforces parity between the declared argument schema
// and the `qc`-tagged fields of the input struct, in both directions.
func validateInputStruct(def *Definition, inputType reflect.Type) *ConfigurationError {
	goInputs := make(map[string]reflect.StructField)
	for i := 0; i < inputType.NumField(); i++ {
		field := inputType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("qc")
		tagName := strings.Split(tag, ",")[0]
		if tagName != "" && tagName != "-" {
			goInputs[tagName] = field
		}
	}

	for name := range goInputs {
		if _, ok := def.Arg(name); !ok {
			return confErrf(def.Name, "input struct has field for argument %q which is not declared", name)
		}
	}
	for _, arg := range def.Args {
		field, ok := goInputs[arg.Name]
		if !ok {
			return confErrf(def.Name, "declared argument %q not found in input struct", arg.Name)
		}
		goType, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface())
		if err != nil {
			return confErrf(def.Name, "argument %q: cannot imply cty type from Go field type %s: %v",
				arg.Name, field.Type, err)
		}
		if !arg.Type.Equals(goType) {
			return confErrf(def.Name, "argument %q: type mismatch, schema declares %s but Go field %s provides %s",
				arg.Name, arg.Type.FriendlyName(), field.Name, goType.FriendlyName())
		}
	}
	return nil
}

// validateDepsStruct restricts deps fields to the three parameter kinds the
// resolver knows how to bind: a capability interface, the loop-iteration
// capability, or the prior-results view.
func validateDepsStruct(def *Definition, depsType reflect.Type) *ConfigurationError {
	for i := 0; i < depsType.NumField(); i++ {
		field := depsType.Field(i)
		if !field.IsExported() {
			continue
		}
		switch {
		case field.Type == iterateType:
		case field.Type == historyType:
		case field.Type.Kind() == reflect.Interface:
		default:
			return confErrf(def.Name,
				"deps field %s has type %s, want a capability interface, hw.Iterate, or []*result.ProcedureResult",
				field.Name, field.Type)
		}
	}
	return nil
}

func validateFn(def *Definition, depsType, inputType reflect.Type) *ConfigurationError {
	fnType := reflect.TypeOf(def.Fn)
	ok := fnType != nil &&
		fnType.Kind() == reflect.Func &&
		fnType.NumIn() == 4 &&
		fnType.In(0) == ctxType &&
		fnType.In(1) == reflect.PointerTo(depsType) &&
		fnType.In(2) == reflect.PointerTo(inputType) &&
		fnType.In(3) == recorderType &&
		fnType.NumOut() == 1 &&
		fnType.Out(0) == errType
	if !ok {
		return confErrf(def.Name,
			"Fn must be func(context.Context, *%s, *%s, *result.Recorder) error, got %v",
			depsType.Name(), inputType.Name(), fnType)
	}
	return nil
}
