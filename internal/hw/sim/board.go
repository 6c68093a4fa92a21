// Package sim provides a deterministic in-process tileboard used by the
// `-sim` CLI flag and the engine tests. It implements the hw.HGCROC and
// hw.SlowControl capabilities: the simulated pedestal responds to the "trim"
// DAC so scan procedures have something to fit.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Board is a simulated tileboard. All methods are safe for use from a single
// running procedure; the zero value is not usable, construct with NewBoard.
type Board struct {
	mu   sync.Mutex
	rng  *rand.Rand
	dacs map[string]int

	gpioVals uint32
	gpioDir  uint32

	channels  int
	pedestal  float64 // mean readout at trim shift 0
	slope     float64 // pedestal change per trim DAC count
	curvature float64 // quadratic term, nonzero on "type 2" boards
	noise     float64 // gaussian spread of single events
}

// NewBoard creates a simulated board with reproducible readout for a seed.
func NewBoard(seed uint64) *Board {
	return &Board{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		dacs:     make(map[string]int),
		channels: 72,
		pedestal: 85,
		slope:    -1.5,
		noise:    2,
	}
}

// SetCurvature makes the pedestal response quadratic in the trim shift,
// mimicking boards whose optimum lies outside the scanned window.
func (b *Board) SetCurvature(c float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.curvature = c
}

// Channels implements hw.HGCROC.
func (b *Board) Channels() int {
	return b.channels
}

// Acquire implements hw.HGCROC. The mean readout follows the current "trim"
// DAC setting.
func (b *Board) Acquire(ctx context.Context, nEvents int) ([][]float64, error) {
	if nEvents <= 0 {
		return nil, fmt.Errorf("sim: nEvents must be positive, got %d", nEvents)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	shift := float64(b.dacs["trim"])
	mean := b.pedestal + b.slope*shift + b.curvature*shift*shift

	data := make([][]float64, b.channels)
	for ch := range data {
		events := make([]float64, nEvents)
		for i := range events {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			events[i] = float64(int(mean + b.rng.NormFloat64()*b.noise + 0.5))
		}
		data[ch] = events
	}
	return data, nil
}

// SetDAC implements hw.SlowControl.
func (b *Board) SetDAC(block string, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dacs[block] = value
	return nil
}

// ReadDAC implements hw.SlowControl.
func (b *Board) ReadDAC(block string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.dacs[block]
	if !ok {
		return 0, fmt.Errorf("sim: DAC block %q never set", block)
	}
	return v, nil
}

// SetGPIODirection implements hw.SlowControl.
func (b *Board) SetGPIODirection(direction uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gpioDir = direction
	return nil
}

// SetGPIO implements hw.SlowControl.
func (b *Board) SetGPIO(vals, mask uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gpioVals = (b.gpioVals &^ mask) | (vals & mask)
	return nil
}

// ReadGPIO implements hw.SlowControl.
func (b *Board) ReadGPIO() (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gpioVals, nil
}

// ReadTemperature implements hw.SlowControl. Sensors sit at slightly
// different spots on the board, hence the per-sensor offset.
func (b *Board) ReadTemperature(sensor int) (float64, error) {
	if sensor < 0 || sensor > 7 {
		return 0, fmt.Errorf("sim: no temperature sensor %d", sensor)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return 25 + 0.3*float64(sensor) + b.rng.NormFloat64()*0.05, nil
}

// ReadVoltage implements hw.SlowControl.
func (b *Board) ReadVoltage(line string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch line {
	case "sipm":
		return 40.5 + b.rng.NormFloat64()*0.01, nil
	case "led":
		return 5.0 + b.rng.NormFloat64()*0.01, nil
	}
	return 0, fmt.Errorf("sim: unknown voltage line %q", line)
}

// ReadCurrent implements hw.SlowControl.
func (b *Board) ReadCurrent(line string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch line {
	case "sipm":
		return 0.012 + b.rng.NormFloat64()*0.0001, nil
	case "led":
		return 0.003 + b.rng.NormFloat64()*0.0001, nil
	}
	return 0, fmt.Errorf("sim: unknown current line %q", line)
}
