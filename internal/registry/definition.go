package registry

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ArgSpec declares one tunable argument of a procedure: a primitive type, a
// documentation string used to generate CLI/GUI elements, an optional default
// and an optional value restriction.
type ArgSpec struct {
	Name        string
	Type        cty.Type
	Description string
	Default     *cty.Value
	Check       Check
}

// Required reports whether the caller must supply a value.
func (a ArgSpec) Required() bool {
	return a.Default == nil
}

// Default is a convenience for declaring ArgSpec defaults inline.
func Default(v cty.Value) *cty.Value {
	return &v
}

// Definition is a named, versioned variant of calibration logic. One
// Definition instance serves all invocations; per-invocation state lives in
// the input/deps structs and the result recorder.
//
// NewInput allocates the struct the resolver decodes argument values into;
// its exported fields carry `qc:"<arg name>"` tags matched against Args.
// NewDeps allocates the struct the resolver fills with capability instances;
// its fields must be capability interfaces, an hw.Iterate, or a
// []*result.ProcedureResult history view.
// Fn must be func(context.Context, *Deps, *Input, *result.Recorder) error.
type Definition struct {
	Name        string
	Version     string
	Description string
	Args        []ArgSpec

	NewInput func() any
	NewDeps  func() any
	Fn       any
}

// Arg returns the spec for a named argument, if declared.
func (d *Definition) Arg(name string) (ArgSpec, bool) {
	for _, a := range d.Args {
		if a.Name == name {
			return a, true
		}
	}
	return ArgSpec{}, false
}

// ConfigurationError reports a malformed Definition. It is fatal at
// registration time and aborts startup.
type ConfigurationError struct {
	Procedure string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("procedure %q: %s", e.Procedure, e.Reason)
}

func confErrf(name, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Procedure: name, Reason: fmt.Sprintf(format, args...)}
}
