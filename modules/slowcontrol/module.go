// Package slowcontrol implements the slow-control checkout: program the bias
// rails for the requested overvoltage, then read back DACs, temperatures and
// the analog monitoring lines into the board summary.
package slowcontrol

import (
	"context"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/ctxlog"
	"github.com/vk/tileqc/internal/hw"
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/result"
)

// GPIO layout of the tileboard bias section: '0' marks an input line, '1' an
// output line.
const gpioDirection = 0x0FFFFF9C

var biasBlocks = []string{"A", "B", "C", "D"}

// Module implements registry.Module for this procedure.
type Module struct{}

// Input carries the tunable arguments.
type Input struct {
	TBVersion string  `qc:"tb_version"`
	Overvolt  float64 `qc:"overvolt"`
	Settle    float64 `qc:"settle"`
}

// Deps declares the capabilities the checkout needs.
type Deps struct {
	Slow hw.SlowControl
}

// Register registers the procedure definition with the engine.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Definition{
		Name:        "slow_control",
		Version:     "v1",
		Description: "Program the SiPM bias rails and read back the monitoring lines",
		Args: []registry.ArgSpec{
			{Name: "tb_version", Type: cty.String, Description: "Version string of the tileboard",
				Check: registry.OneOf{Choices: []string{"TB3", "TB3_2"}}},
			{Name: "overvolt", Type: cty.Number, Description: "Overvoltage value (V)",
				Check: registry.Range{Min: 0, Max: 8}},
			{Name: "settle", Type: cty.Number, Description: "Voltage stabilization wait (seconds)",
				Default: registry.Default(cty.NumberFloatVal(0.5)), Check: registry.Range{Min: 0, Max: 5}},
		},
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunSlowControl,
	})
}

// OnRunSlowControl is the execution routine.
func OnRunSlowControl(ctx context.Context, deps *Deps, input *Input, rec *result.Recorder) error {
	logger := ctxlog.FromContext(ctx)
	payload := result.Payload{}

	if err := deps.Slow.SetGPIODirection(gpioDirection); err != nil {
		return err
	}
	// MPPC_BIAS1 enable pattern differs between tileboard revisions.
	enable := uint32(0x00100000)
	if input.TBVersion == "TB3_2" {
		enable = 0x00200000
	}
	if err := deps.Slow.SetGPIO(enable, 0x00300000); err != nil {
		return err
	}
	if err := deps.Slow.SetGPIO(0x00000080, 0x00000080); err != nil {
		return err
	}
	if err := deps.Slow.SetGPIO(0x00000000, 0x0000FF00); err != nil {
		return err
	}
	gpio, err := deps.Slow.ReadGPIO()
	if err != nil {
		return err
	}
	logger.Info("GPIO configured.", "values", fmt.Sprintf("%#x", gpio))
	payload["gpio"] = result.Int(int64(gpio))

	logger.Info("Setting bias DAC values.", "overvolt", input.Overvolt)
	for i, block := range biasBlocks {
		// Reference setting scales with the requested overvoltage; the
		// per-block offset compensates the rail lengths.
		value := int(input.Overvolt*100) + i
		if err := deps.Slow.SetDAC("bias_"+block, value); err != nil {
			return err
		}
		readback, err := deps.Slow.ReadDAC("bias_" + block)
		if err != nil {
			return err
		}
		payload["dac_"+block] = result.Int(int64(readback))
	}

	logger.Info("Waiting for voltage stabilization.", "seconds", input.Settle)
	sleep(ctx, time.Duration(input.Settle*float64(time.Second)))
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("Reading ADC values")
	for sensor := 0; sensor < 8; sensor++ {
		temp, err := deps.Slow.ReadTemperature(sensor)
		if err != nil {
			return err
		}
		payload[fmt.Sprintf("temp_%d", sensor)] = result.Num(temp)
	}
	for _, line := range []string{"sipm", "led"} {
		v, err := deps.Slow.ReadVoltage(line)
		if err != nil {
			return err
		}
		c, err := deps.Slow.ReadCurrent(line)
		if err != nil {
			return err
		}
		payload[line+"_voltage"] = result.Num(v)
		payload[line+"_current"] = result.Num(c)
	}

	f, err := rec.CreateFile("slow_control.txt", "Slow control readback", nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "tb_version=%s overvolt=%gV gpio=%#x\n", input.TBVersion, input.Overvolt, gpio)
	if err := f.Close(); err != nil {
		return err
	}

	return rec.SetBoardResult(result.StatusOK, "SUCCESS", payload)
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
