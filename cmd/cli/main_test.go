package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should see `shouldExit=true` and return a nil error.
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Providing an unknown flag will cause cli.Parse to return an error.
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should propagate the error from cli.Parse.
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_ListsProcedures(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"-list", "-log-level", "error"})

	require.NoError(t, err)
	require.Contains(t, out.String(), "pedestal_scan (v1)")
	require.Contains(t, out.String(), "slow_control (v1)")
}

func TestRun_MissingPlanFails(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{
		"-board", "TB3_D8:0042",
		"-new",
		"-results", filepath.Join(t.TempDir(), "results"),
		"-log-level", "error",
		"no-such-dir",
	})

	require.Error(t, err, "a nonexistent plan path must fail the run")
}
