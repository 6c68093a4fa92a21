// Package resolver matches a procedure's declared requirements against what a
// session currently has: hardware capabilities bound to the session, the
// prior-results history, the loop-iteration hook, and the caller-supplied
// argument values. Resolution is pure and side-effect-free: it never
// invokes hardware, and the same (definition, session state) always yields
// the same outcome.
package resolver

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/tileqc/internal/ctxlog"
	"github.com/vk/tileqc/internal/hw"
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/result"
)

var (
	iterateType = reflect.TypeOf(hw.Iterate(nil))
	historyType = reflect.TypeOf([]*result.ProcedureResult(nil))
)

// Source is the read-only session view resolution works from.
type Source interface {
	// Capability returns a bound hardware instance satisfying the
	// capability interface type, if any.
	Capability(t reflect.Type) (any, bool)
	// History returns the ordered history of completed invocations.
	History() []*result.ProcedureResult
	// Iterator returns the progress-reporting loop capability.
	Iterator() hw.Iterate
}

// HardwareUnavailableError reports a declared capability no bound hardware
// instance satisfies. It is raised before any side-effecting execution.
type HardwareUnavailableError struct {
	Procedure  string
	Capability string
}

func (e *HardwareUnavailableError) Error() string {
	return fmt.Sprintf("procedure %q requires hardware capability %s, which is not bound to the session",
		e.Procedure, e.Capability)
}

// Is lets errors.Is match any HardwareUnavailableError, or one for a
// specific capability when target names it.
func (e *HardwareUnavailableError) Is(target error) bool {
	t, ok := target.(*HardwareUnavailableError)
	return ok && (t.Capability == "" || t.Capability == e.Capability)
}

// Resolve builds the deps struct declared by def from the session view. Each
// exported field is bound by its declared type: capability interfaces from
// the session's hardware map, hw.Iterate from the session's progress hook,
// and []*result.ProcedureResult as a copied, read-only history view.
func Resolve(ctx context.Context, def *registry.Definition, src Source) (any, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Resolving procedure interface.", "procedure", def.Name)

	deps := def.NewDeps()
	depsValue := reflect.ValueOf(deps).Elem()
	depsType := depsValue.Type()

	for i := 0; i < depsValue.NumField(); i++ {
		field := depsType.Field(i)
		if !field.IsExported() {
			continue
		}
		switch field.Type {
		case iterateType:
			depsValue.Field(i).Set(reflect.ValueOf(src.Iterator()))
		case historyType:
			hist := src.History()
			view := make([]*result.ProcedureResult, len(hist))
			copy(view, hist)
			depsValue.Field(i).Set(reflect.ValueOf(view))
		default:
			instance, found := src.Capability(field.Type)
			if !found {
				err := &HardwareUnavailableError{Procedure: def.Name, Capability: typeName(field.Type)}
				logger.Debug("Capability lookup failed.", "procedure", def.Name, "capability", err.Capability)
				return nil, err
			}
			instanceType := reflect.TypeOf(instance)
			if !instanceType.Implements(field.Type) {
				return nil, fmt.Errorf("bound instance of type %v does not implement required capability %v",
					instanceType, field.Type)
			}
			depsValue.Field(i).Set(reflect.ValueOf(instance))
		}
	}

	logger.Debug("Procedure interface resolved.", "procedure", def.Name)
	return deps, nil
}

func typeName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return strings.TrimPrefix(t.String(), "*")
}
