package registry

import "iter"

// Module is the interface procedure packages implement to register their
// definitions with an application instance.
type Module interface {
	Register(r *Registry) error
}

// Registry holds the validated procedure definitions for a single
// application instance, in registration order.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register validates a Definition and adds it under its declared name.
// Any violation is a *ConfigurationError: it is reported at load time and
// must abort startup, never surface mid-calibration.
func (r *Registry) Register(def *Definition) error {
	if err := validate(def); err != nil {
		return err
	}
	if _, exists := r.defs[def.Name]; exists {
		return confErrf(def.Name, "already registered")
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// All enumerates the registered definitions in registration order. The
// sequence is lazy and restartable; callers never see registry internals.
func (r *Registry) All() iter.Seq[*Definition] {
	return func(yield func(*Definition) bool) {
		for _, name := range r.order {
			if !yield(r.defs[name]) {
				return
			}
		}
	}
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.order)
}
