package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/tileqc/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("tileqc", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
tileqc - Tileboard calibration session runner.

Usage:
  tileqc [options] [PLAN_PATH]

Arguments:
  PLAN_PATH
    Path to a single .hcl plan file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	boardFlag := flagSet.String("board", "", "Board under test, as TYPE:ID (e.g. TB3_D8:0001).")
	resultsFlag := flagSet.String("results", "results", "Directory holding the per-board session directories.")
	newFlag := flagSet.Bool("new", false, "Create a blank session for the board instead of loading one.")
	listFlag := flagSet.Bool("list", false, "List registered procedures with their arguments, then exit.")
	simFlag := flagSet.Bool("sim", false, "Bind a simulated tileboard instead of station hardware.")
	simSeedFlag := flagSet.Uint64("sim-seed", 1, "Random seed for the simulated tileboard.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Plan path determined.", "path", path)

	if path == "" && !*listFlag {
		slog.Debug("No plan path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	boardType, boardID := "", ""
	if *boardFlag != "" {
		var ok bool
		boardType, boardID, ok = strings.Cut(*boardFlag, ":")
		if !ok || boardType == "" || boardID == "" {
			return nil, false, &ExitError{Code: 2, Message: "invalid -board: must be TYPE:ID"}
		}
	}

	// Level and format validation lives with the logger in app.NewConfig.
	config, err := app.NewConfig(app.Config{
		PlanPath:   path,
		ResultsDir: *resultsFlag,
		BoardType:  boardType,
		BoardID:    boardID,
		NewSession: *newFlag,
		List:       *listFlag,
		Simulate:   *simFlag,
		SimSeed:    *simSeedFlag,
		LogFormat:  strings.ToLower(*logFormatFlag),
		LogLevel:   strings.ToLower(*logLevelFlag),
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
