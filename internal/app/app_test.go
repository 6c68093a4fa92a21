package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/tileqc/internal/app"
	"github.com/vk/tileqc/internal/session"
)

func TestNewApp_RegistersCoreProcedures(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	a := app.NewApp(&out, &app.Config{LogLevel: "error", LogFormat: "text"})

	for _, name := range []string{"pedestal_scan", "pedestal_norm", "slow_control"} {
		_, ok := a.Registry().Lookup(name)
		require.True(t, ok, "core procedure %q must be registered", name)
	}
}

func TestNewConfig_ValidatesLogSettings(t *testing.T) {
	t.Parallel()

	_, err := app.NewConfig(app.Config{List: true, LogLevel: "loud", LogFormat: "text"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "log-level")

	_, err = app.NewConfig(app.Config{List: true, LogLevel: "info", LogFormat: "xml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "log-format")

	cfg, err := app.NewConfig(app.Config{List: true, LogLevel: "debug", LogFormat: "json"})
	require.NoError(t, err)
	require.True(t, cfg.List)
}

func TestRun_ListPrintsProcedureSchemas(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	a := app.NewApp(&out, &app.Config{List: true, LogLevel: "error", LogFormat: "text"})
	require.NoError(t, a.Run(context.Background()))

	text := out.String()
	require.Contains(t, text, "pedestal_scan (v1)")
	require.Contains(t, text, "--target <number> (required)")
	require.Contains(t, text, "--pause <number> (default 0.5)")
	require.Contains(t, text, "Range(0.1, 2)")
	require.Contains(t, text, `--tb_version <string>`)
	require.Contains(t, text, "OneOf(TB3, TB3_2)")
}

func TestRun_ExecutesPlanOnSimulatedBoard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	planPath := filepath.Join(dir, "checkout.hcl")
	require.NoError(t, os.WriteFile(planPath, []byte(`
run "slow_control" {
  arguments {
    tb_version = "TB3"
    overvolt   = 2
    settle     = 0
  }
}
`), 0o644))

	resultsDir := filepath.Join(dir, "results")
	cfg := &app.Config{
		PlanPath:   planPath,
		ResultsDir: resultsDir,
		BoardType:  "TB3_D8",
		BoardID:    "0042",
		NewSession: true,
		Simulate:   true,
		SimSeed:    1,
		LogLevel:   "error",
		LogFormat:  "text",
	}

	var out bytes.Buffer
	a := app.NewApp(&out, cfg)
	require.NoError(t, a.Run(context.Background()))

	_, err := os.Stat(filepath.Join(resultsDir, "TB3_D8.0042", session.FileName))
	require.NoError(t, err, "the run must leave a persisted session behind")
}

func TestRun_StopsPlanOnFailedProcedure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	planPath := filepath.Join(dir, "checkout.hcl")
	// The first run is rejected at argument binding; the second must not run.
	require.NoError(t, os.WriteFile(planPath, []byte(`
run "slow_control" {
  arguments {
    tb_version = "TB2"
    overvolt   = 2
  }
}

run "slow_control" {
  arguments {
    tb_version = "TB3"
    overvolt   = 2
    settle     = 0
  }
}
`), 0o644))

	cfg := &app.Config{
		PlanPath:   planPath,
		ResultsDir: filepath.Join(dir, "results"),
		BoardType:  "TB3_D8",
		BoardID:    "0042",
		NewSession: true,
		Simulate:   true,
		SimSeed:    1,
		LogLevel:   "error",
		LogFormat:  "text",
	}

	var out bytes.Buffer
	a := app.NewApp(&out, cfg)
	err := a.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "tb_version")
}
