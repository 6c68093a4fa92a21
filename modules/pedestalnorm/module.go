// Package pedestalnorm implements the pedestal normalization pass: it picks
// up a readout file produced by an earlier pedestal scan and reprocesses it,
// mimicking the loop structure of the real normalization routine.
package pedestalnorm

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/ctxlog"
	"github.com/vk/tileqc/internal/hw"
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/result"
)

// channelCount matches the HGCROC front-end; the normalization pass works
// entirely from recorded files and never touches the board.
const channelCount = 72

// Module implements registry.Module for this procedure.
type Module struct{}

// Input carries the tunable arguments.
type Input struct {
	OuterSize int     `qc:"outer_size"`
	InnerSize int     `qc:"inner_size"`
	Pause     float64 `qc:"pause"`
	CompFile  string  `qc:"comp_file"`
}

// Deps declares the capabilities the pass needs.
type Deps struct {
	Iterate hw.Iterate
	History []*result.ProcedureResult
}

// Register registers the procedure definition with the engine.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Definition{
		Name:        "pedestal_norm",
		Version:     "v1",
		Description: "Normalize channel pedestals against a recorded scan readout",
		Args: []registry.ArgSpec{
			{Name: "outer_size", Type: cty.Number, Description: "Size of outer loop",
				Default: registry.Default(cty.NumberIntVal(5)), Check: registry.Range{Min: 5, Max: 10}},
			{Name: "inner_size", Type: cty.Number, Description: "Size of inner loop",
				Default: registry.Default(cty.NumberIntVal(10)), Check: registry.Range{Min: 5, Max: 10}},
			{Name: "pause", Type: cty.Number, Description: "Time between loops (seconds)",
				Default: registry.Default(cty.NumberFloatVal(0.01)), Check: registry.Range{Min: 0.01, Max: 1}},
			{Name: "comp_file", Type: cty.String, Description: "Recorded scan readout to pull contents from",
				Check: registry.DataFileOf{Procedure: "pedestal_scan", Pattern: "*.csv"}},
		},
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunPedestalNorm,
	})
}

// OnRunPedestalNorm is the execution routine.
func OnRunPedestalNorm(ctx context.Context, deps *Deps, input *Input, rec *result.Recorder) error {
	logger := ctxlog.FromContext(ctx)

	lines, err := countLines(rec.ResolvePath(input.CompFile))
	if err != nil {
		return fmt.Errorf("loading previous content: %w", err)
	}
	logger.Info("Loaded previous content.", "file", input.CompFile, "channels", lines)

	for outer := range deps.Iterate(input.OuterSize, "Outer looping") {
		logger.Info("Logging once per outer loop.", "iteration", outer+1)
		for range deps.Iterate(input.InnerSize, "Inner loop") {
			sleep(ctx, time.Duration(input.Pause*float64(time.Second)))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := rec.CreateFile("pedestal_norm.txt", "Normalization summary", nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "normalized %d channels against %s\n", channelCount, input.CompFile)
	if err := f.Close(); err != nil {
		return err
	}

	for ch := 0; ch < channelCount; ch++ {
		if err := rec.SetChannelResult(ch, result.StatusOK, "SUCCESS", nil); err != nil {
			return err
		}
	}
	return rec.SetBoardResult(result.StatusOK, "SUCCESS", nil)
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
