package registry

import (
	"fmt"
	"path"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/result"
)

// CheckContext is the read-only session view restrictions may consult.
type CheckContext interface {
	History() []*result.ProcedureResult
}

// Check restricts the values an argument accepts. Validation runs before the
// execution routine is resolved, so a bad value never touches hardware.
type Check interface {
	// Describe is the human-readable form shown in listings and errors.
	Describe() string
	// Validate returns a non-nil error when v is outside the restriction.
	Validate(v cty.Value, cc CheckContext) error
}

// Range restricts a number argument to the closed interval [Min, Max].
type Range struct {
	Min, Max float64
}

func (r Range) Describe() string {
	return fmt.Sprintf("Range(%g, %g)", r.Min, r.Max)
}

func (r Range) Validate(v cty.Value, _ CheckContext) error {
	if v.Type() != cty.Number {
		return fmt.Errorf("expected a number, got %s", v.Type().FriendlyName())
	}
	f, _ := v.AsBigFloat().Float64()
	if f < r.Min || f > r.Max {
		return fmt.Errorf("value %g outside %s", f, r.Describe())
	}
	return nil
}

// OneOf restricts a string argument to a fixed choice list.
type OneOf struct {
	Choices []string
}

func (o OneOf) Describe() string {
	return fmt.Sprintf("OneOf(%s)", strings.Join(o.Choices, ", "))
}

func (o OneOf) Validate(v cty.Value, _ CheckContext) error {
	if v.Type() != cty.String {
		return fmt.Errorf("expected a string, got %s", v.Type().FriendlyName())
	}
	s := v.AsString()
	for _, c := range o.Choices {
		if s == c {
			return nil
		}
	}
	return fmt.Errorf("value %q not in %s", s, o.Describe())
}

// DataFileOf restricts a string argument to the relative path of a data file
// recorded by an earlier invocation of the named procedure, with the file
// name matched against Pattern.
type DataFileOf struct {
	Procedure string
	Pattern   string
}

func (d DataFileOf) Describe() string {
	return fmt.Sprintf("DataFileOf(%s, %s)", d.Procedure, d.Pattern)
}

func (d DataFileOf) Validate(v cty.Value, cc CheckContext) error {
	if v.Type() != cty.String {
		return fmt.Errorf("expected a string, got %s", v.Type().FriendlyName())
	}
	want := v.AsString()
	if cc == nil {
		return fmt.Errorf("value %q cannot be checked without a session", want)
	}
	for _, res := range cc.History() {
		if res.Name != d.Procedure {
			continue
		}
		for _, entry := range res.DataFiles {
			ok, err := path.Match(d.Pattern, path.Base(entry.Path))
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", d.Pattern, err)
			}
			if ok && entry.Path == want {
				return nil
			}
		}
	}
	return fmt.Errorf("value %q is not a recorded %s data file", want, d.Describe())
}
