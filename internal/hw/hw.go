// Package hw defines the typed capability surfaces the engine matches
// procedures against. The engine never sees transport or protocol details;
// a station binds whatever concrete implementations it has to the session,
// and the resolver matches them purely by these interface types.
package hw

import "context"

// HGCROC is the readout capability of a tileboard front-end. Acquire blocks
// until nEvents samples per channel have been collected and returns them as
// [channel][event] values.
type HGCROC interface {
	Channels() int
	Acquire(ctx context.Context, nEvents int) ([][]float64, error)
}

// SlowControl is the I2C-style slow-control capability: bias DACs, GPIO
// lines, and the analog monitoring ADCs.
type SlowControl interface {
	SetDAC(block string, value int) error
	ReadDAC(block string) (int, error)

	SetGPIODirection(direction uint32) error
	SetGPIO(vals, mask uint32) error
	ReadGPIO() (uint32, error)

	ReadTemperature(sensor int) (float64, error)
	ReadVoltage(line string) (float64, error)
	ReadCurrent(line string) (float64, error)
}
