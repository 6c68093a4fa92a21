package resolver_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/hw"
	"github.com/vk/tileqc/internal/hw/sim"
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/resolver"
	"github.com/vk/tileqc/internal/result"
)

type probeInput struct {
	NEvents int `qc:"n_events"`
}

type probeDeps struct {
	Board   hw.HGCROC
	Iterate hw.Iterate
	History []*result.ProcedureResult
}

func probeDefinition(t *testing.T) *registry.Definition {
	t.Helper()
	def := &registry.Definition{
		Name:        "readout_probe",
		Version:     "v1",
		Description: "Probe the readout capability",
		Args: []registry.ArgSpec{
			{Name: "n_events", Type: cty.Number, Description: "Events per readout",
				Default: registry.Default(cty.NumberIntVal(100)), Check: registry.Range{Min: 1, Max: 1000}},
		},
		NewInput: func() any { return new(probeInput) },
		NewDeps:  func() any { return new(probeDeps) },
		Fn: func(ctx context.Context, deps *probeDeps, input *probeInput, rec *result.Recorder) error {
			return nil
		},
	}
	reg := registry.New()
	require.NoError(t, reg.Register(def), "test definition must pass registration")
	return def
}

// fakeSource is a resolver.Source over canned state.
type fakeSource struct {
	instances []any
	history   []*result.ProcedureResult
}

func (s *fakeSource) Capability(t reflect.Type) (any, bool) {
	for _, instance := range s.instances {
		if reflect.TypeOf(instance).Implements(t) {
			return instance, true
		}
	}
	return nil, false
}

func (s *fakeSource) History() []*result.ProcedureResult { return s.history }

func (s *fakeSource) Iterator() hw.Iterate { return hw.LogIterator(context.Background()) }

func TestResolve_BindsAllDeclaredRequirements(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)
	board := sim.NewBoard(1)
	prior := result.New("pedestal_scan", "v1", nil)
	src := &fakeSource{instances: []any{board}, history: []*result.ProcedureResult{prior}}

	deps, err := resolver.Resolve(context.Background(), def, src)
	require.NoError(t, err)

	probe := deps.(*probeDeps)
	require.Same(t, board, probe.Board.(*sim.Board))
	require.NotNil(t, probe.Iterate)
	require.Len(t, probe.History, 1)
}

func TestResolve_HistoryIsACopy(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)
	prior := result.New("pedestal_scan", "v1", nil)
	src := &fakeSource{
		instances: []any{sim.NewBoard(1)},
		history:   []*result.ProcedureResult{prior},
	}

	deps, err := resolver.Resolve(context.Background(), def, src)
	require.NoError(t, err)

	probe := deps.(*probeDeps)
	probe.History[0] = nil
	require.Same(t, prior, src.history[0], "mutating the view must not touch the session history")
}

func TestResolve_MissingCapabilityNamesIt(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)
	src := &fakeSource{} // nothing bound

	_, err := resolver.Resolve(context.Background(), def, src)

	var hwErr *resolver.HardwareUnavailableError
	require.ErrorAs(t, err, &hwErr)
	require.Equal(t, "HGCROC", hwErr.Capability)
	require.Equal(t, "readout_probe", hwErr.Procedure)
	require.Contains(t, err.Error(), "HGCROC", "the error message must name the missing capability")
	require.True(t, errors.Is(err, &resolver.HardwareUnavailableError{Capability: "HGCROC"}))
}

func TestResolve_IsDeterministic(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)
	src := &fakeSource{}

	_, err1 := resolver.Resolve(context.Background(), def, src)
	_, err2 := resolver.Resolve(context.Background(), def, src)
	require.Equal(t, err1, err2, "same definition and session state must yield the same outcome")
}

func TestBindArguments_AppliesDefaults(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)

	input, resolved, err := resolver.BindArguments(def, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 100, input.(*probeInput).NEvents)
	require.True(t, cty.NumberIntVal(100).RawEquals(resolved["n_events"]),
		"the resolved map must record the applied default")
}

func TestBindArguments_ConvertsCompatibleValues(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)

	input, _, err := resolver.BindArguments(def, map[string]cty.Value{
		"n_events": cty.StringVal("250"),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 250, input.(*probeInput).NEvents)
}

func TestBindArguments_RejectsUnknownName(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)

	_, _, err := resolver.BindArguments(def, map[string]cty.Value{
		"n_event": cty.NumberIntVal(250),
	}, nil)

	var argErr *resolver.ArgumentError
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "n_event", argErr.Argument)
}

func TestBindArguments_RejectsMissingRequired(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)
	def.Args[0].Default = nil

	_, _, err := resolver.BindArguments(def, nil, nil)

	var argErr *resolver.ArgumentError
	require.ErrorAs(t, err, &argErr)
	require.Contains(t, argErr.Error(), "required argument missing")
}

func TestBindArguments_RejectsNullValue(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)

	// Conversion passes a typed null straight through, so binding has to
	// reject it before any restriction dereferences the value.
	_, _, err := resolver.BindArguments(def, map[string]cty.Value{
		"n_events": cty.NullVal(cty.Number),
	}, nil)

	var argErr *resolver.ArgumentError
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "n_events", argErr.Argument)
	require.Contains(t, argErr.Error(), "non-null")
}

func TestBindArguments_RejectsUnknownValue(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)

	_, _, err := resolver.BindArguments(def, map[string]cty.Value{
		"n_events": cty.UnknownVal(cty.Number),
	}, nil)

	var argErr *resolver.ArgumentError
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "n_events", argErr.Argument)
}

func TestBindArguments_RunsChecks(t *testing.T) {
	t.Parallel()

	def := probeDefinition(t)

	_, _, err := resolver.BindArguments(def, map[string]cty.Value{
		"n_events": cty.NumberIntVal(100000),
	}, nil)

	var argErr *resolver.ArgumentError
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "n_events", argErr.Argument)
}
