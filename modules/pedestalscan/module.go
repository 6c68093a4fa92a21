// Package pedestalscan implements the trim-DAC pedestal scan: acquire
// readouts over a window of DAC shifts, fit the per-channel pedestal
// response with a weighted line, and record the optimal shift for each
// channel.
package pedestalscan

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/ctxlog"
	"github.com/vk/tileqc/internal/hw"
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/result"
)

// Module implements registry.Module for this procedure.
type Module struct{}

// Input carries the tunable arguments.
type Input struct {
	Target     int     `qc:"target"`
	NEvents    int     `qc:"n_events"`
	LowerRange int     `qc:"lower_range"`
	UpperRange int     `qc:"upper_range"`
	Pause      float64 `qc:"pause"`
}

// Deps declares the capabilities the scan needs.
type Deps struct {
	Board   hw.HGCROC
	Slow    hw.SlowControl
	Iterate hw.Iterate
}

// Register registers the procedure definition with the engine.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Definition{
		Name:        "pedestal_scan",
		Version:     "v1",
		Description: "Scan the trim DAC and fit the per-channel pedestal response",
		Args: []registry.ArgSpec{
			{Name: "target", Type: cty.Number, Description: "Target pedestal value"},
			{Name: "n_events", Type: cty.Number, Description: "Number of events to collect per scan point",
				Default: registry.Default(cty.NumberIntVal(200))},
			{Name: "lower_range", Type: cty.Number, Description: "Lower shift range",
				Default: registry.Default(cty.NumberIntVal(-5)), Check: registry.Range{Min: -10, Max: 0}},
			{Name: "upper_range", Type: cty.Number, Description: "Upper shift range",
				Default: registry.Default(cty.NumberIntVal(5)), Check: registry.Range{Min: 0, Max: 10}},
			{Name: "pause", Type: cty.Number, Description: "Time between DAQ calls (seconds)",
				Default: registry.Default(cty.NumberFloatVal(0.5)), Check: registry.Range{Min: 0.1, Max: 2}},
		},
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunPedestalScan,
	})
}

// OnRunPedestalScan is the execution routine.
func OnRunPedestalScan(ctx context.Context, deps *Deps, input *Input, rec *result.Recorder) error {
	logger := ctxlog.FromContext(ctx)

	logger.Info("Running initial readout with no shift")
	if _, err := acquireAt(ctx, deps, 0, input.NEvents, rec, "pedestal_initial.csv", "Initial readout"); err != nil {
		return err
	}

	type scanPoint struct {
		shift       int
		mean, sigma []float64
	}
	var scan []scanPoint

	logger.Info("Running trim DAC scan")
	nPoints := input.UpperRange - input.LowerRange
	for i := range deps.Iterate(nPoints, "Shifting trim DAC") {
		shift := input.LowerRange + i
		name := fmt.Sprintf("pedestal_shift%d.csv", shift)
		data, err := acquireAt(ctx, deps, shift, input.NEvents, rec, name, fmt.Sprintf("shifted_readout_%d", shift))
		if err != nil {
			return err
		}
		mean, sigma := channelStats(data)
		scan = append(scan, scanPoint{shift: shift, mean: mean, sigma: sigma})
		sleep(ctx, time.Duration(input.Pause*float64(time.Second)))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(scan) < 2 {
		return fmt.Errorf("scan window [%d, %d) yields %d points, need at least 2 to fit",
			input.LowerRange, input.UpperRange, len(scan))
	}

	logger.Info("Running fit")
	channels := deps.Board.Channels()
	xs := make([]float64, len(scan))
	for i, p := range scan {
		xs[i] = float64(p.shift)
	}
	var failed []int64
	for ch := range deps.Iterate(channels, "Running fit on channels") {
		ys := make([]float64, len(scan))
		sigmas := make([]float64, len(scan))
		for i, p := range scan {
			ys[i] = p.mean[ch]
			sigmas[i] = p.sigma[ch]
		}

		var chErr error
		slope, intercept, fitErr := fitLine(xs, ys, sigmas)
		switch {
		case fitErr != nil:
			failed = append(failed, int64(ch))
			chErr = rec.SetChannelResult(ch, result.StatusError, "FIT FAILED",
				result.Payload{"shift": result.Int(0)})
		default:
			opt := int(math.Round((float64(input.Target) - intercept) / slope))
			if opt < input.LowerRange || opt > input.UpperRange {
				failed = append(failed, int64(ch))
				chErr = rec.SetChannelResult(ch, result.StatusError, "OUT OF RANGE",
					result.Payload{"shift": result.Int(0), "fit_param": result.Floats(slope, intercept)})
			} else {
				chErr = rec.SetChannelResult(ch, result.StatusOK, "SUCCESS",
					result.Payload{"shift": result.Int(int64(opt)), "fit_param": result.Floats(slope, intercept)})
			}
		}
		if chErr != nil {
			return chErr
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("Generating summary")
	var sumErr error
	if len(failed) > 0 {
		sumErr = rec.SetBoardResult(result.StatusError, "HAS FAILED",
			result.Payload{"fail_idx": result.Ints(failed...)})
	} else {
		sumErr = rec.SetBoardResult(result.StatusOK, "SUCCESS", nil)
	}
	if sumErr != nil {
		return sumErr
	}

	logger.Info("Saving final readout")
	_, err := acquireAt(ctx, deps, 0, input.NEvents, rec, "pedestal_final.csv", "Final readout")
	return err
}

// acquireAt sets the trim DAC, pulls one readout and tracks it as a CSV data
// file (one row per channel).
func acquireAt(ctx context.Context, deps *Deps, shift, nEvents int, rec *result.Recorder, name, desc string) ([][]float64, error) {
	if err := deps.Slow.SetDAC("trim", shift); err != nil {
		return nil, err
	}
	data, err := deps.Board.Acquire(ctx, nEvents)
	if err != nil {
		return nil, err
	}

	f, err := rec.CreateFile(name, desc, result.Payload{"shift": result.Int(int64(shift))})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := make([]string, 0, nEvents)
	for _, events := range data {
		row = row[:0]
		for _, v := range events {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return data, nil
}

// channelStats returns the per-channel mean and standard deviation.
func channelStats(data [][]float64) (mean, sigma []float64) {
	mean = make([]float64, len(data))
	sigma = make([]float64, len(data))
	for ch, events := range data {
		var sum float64
		for _, v := range events {
			sum += v
		}
		m := sum / float64(len(events))
		var sq float64
		for _, v := range events {
			sq += (v - m) * (v - m)
		}
		mean[ch] = m
		sigma[ch] = math.Sqrt(sq / float64(len(events)))
	}
	return mean, sigma
}

// fitLine fits y = a*x + b by least squares with per-point 1/sigma^2
// weights. It fails on degenerate inputs (no spread in x, or a flat
// response the target can never be projected onto).
func fitLine(xs, ys, sigmas []float64) (slope, intercept float64, err error) {
	var sw, swx, swy, swxx, swxy float64
	for i := range xs {
		s := sigmas[i]
		if s < 1e-9 {
			s = 1e-9
		}
		w := 1 / (s * s)
		sw += w
		swx += w * xs[i]
		swy += w * ys[i]
		swxx += w * xs[i] * xs[i]
		swxy += w * xs[i] * ys[i]
	}
	det := sw*swxx - swx*swx
	if math.Abs(det) < 1e-12 {
		return 0, 0, fmt.Errorf("degenerate scan points")
	}
	slope = (sw*swxy - swx*swy) / det
	intercept = (swxx*swy - swx*swxy) / det
	if math.Abs(slope) < 1e-9 {
		return 0, 0, fmt.Errorf("flat response, cannot project target")
	}
	return slope, intercept, nil
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
