package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/result"
)

// fakeHistory is a minimal CheckContext over a canned result list.
type fakeHistory []*result.ProcedureResult

func (h fakeHistory) History() []*result.ProcedureResult { return h }

func TestRange_Validate(t *testing.T) {
	t.Parallel()

	check := registry.Range{Min: 0.1, Max: 2}
	require.NoError(t, check.Validate(cty.NumberFloatVal(0.5), nil))
	require.NoError(t, check.Validate(cty.NumberFloatVal(2), nil), "bounds are inclusive")
	require.Error(t, check.Validate(cty.NumberFloatVal(2.1), nil))
	require.Error(t, check.Validate(cty.StringVal("0.5"), nil), "type is checked before value")
}

func TestOneOf_Validate(t *testing.T) {
	t.Parallel()

	check := registry.OneOf{Choices: []string{"TB3", "TB3_2"}}
	require.NoError(t, check.Validate(cty.StringVal("TB3"), nil))

	err := check.Validate(cty.StringVal("TB2"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "OneOf(TB3, TB3_2)")
}

func TestDataFileOf_Validate(t *testing.T) {
	t.Parallel()

	scan := result.New("pedestal_scan", "v1", nil)
	require.NoError(t, scan.AddDataFile(result.DataEntry{
		Name: "pedestal_shift0.csv",
		Path: "pedestal_scan_20260101/pedestal_shift0.csv",
	}))
	require.NoError(t, scan.AddDataFile(result.DataEntry{
		Name: "notes.txt",
		Path: "pedestal_scan_20260101/notes.txt",
	}))
	other := result.New("slow_control", "v1", nil)
	require.NoError(t, other.AddDataFile(result.DataEntry{
		Name: "readback.csv",
		Path: "slow_control_20260101/readback.csv",
	}))
	hist := fakeHistory{scan, other}

	check := registry.DataFileOf{Procedure: "pedestal_scan", Pattern: "*.csv"}

	require.NoError(t, check.Validate(cty.StringVal("pedestal_scan_20260101/pedestal_shift0.csv"), hist))

	require.Error(t, check.Validate(cty.StringVal("pedestal_scan_20260101/notes.txt"), hist),
		"file name must match the pattern")
	require.Error(t, check.Validate(cty.StringVal("slow_control_20260101/readback.csv"), hist),
		"file must come from the named procedure")
	require.Error(t, check.Validate(cty.StringVal("pedestal_scan_20260101/missing.csv"), hist))
	require.Error(t, check.Validate(cty.StringVal("anything.csv"), nil),
		"a session view is required")
}
