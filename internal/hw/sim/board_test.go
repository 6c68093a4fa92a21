package sim_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/tileqc/internal/hw/sim"
)

func TestAcquire_IsReproducibleForASeed(t *testing.T) {
	t.Parallel()

	a, err := sim.NewBoard(42).Acquire(context.Background(), 50)
	require.NoError(t, err)
	b, err := sim.NewBoard(42).Acquire(context.Background(), 50)
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Len(t, a, 72)
	require.Len(t, a[0], 50)
}

func TestAcquire_RespondsToTrimDAC(t *testing.T) {
	t.Parallel()

	board := sim.NewBoard(1)

	mean := func(events []float64) float64 {
		var sum float64
		for _, v := range events {
			sum += v
		}
		return sum / float64(len(events))
	}

	require.NoError(t, board.SetDAC("trim", 0))
	base, err := board.Acquire(context.Background(), 500)
	require.NoError(t, err)

	require.NoError(t, board.SetDAC("trim", 4))
	shifted, err := board.Acquire(context.Background(), 500)
	require.NoError(t, err)

	// Slope is -1.5 counts per trim step, so +4 trim lowers the pedestal by
	// about 6 counts.
	require.InDelta(t, mean(base[0])-6, mean(shifted[0]), 1.5)
}

func TestReadDAC_FailsBeforeFirstWrite(t *testing.T) {
	t.Parallel()

	board := sim.NewBoard(1)
	_, err := board.ReadDAC("bias_A")
	require.Error(t, err)

	require.NoError(t, board.SetDAC("bias_A", 201))
	v, err := board.ReadDAC("bias_A")
	require.NoError(t, err)
	require.Equal(t, 201, v)
}

func TestGPIO_MaskedWrites(t *testing.T) {
	t.Parallel()

	board := sim.NewBoard(1)
	require.NoError(t, board.SetGPIODirection(0x0FFFFF9C))
	require.NoError(t, board.SetGPIO(0x00100000, 0x00300000))
	require.NoError(t, board.SetGPIO(0x00000080, 0x00000080))

	v, err := board.ReadGPIO()
	require.NoError(t, err)
	require.Equal(t, uint32(0x00100080), v)

	// Rewriting the masked region clears the previously set bit.
	require.NoError(t, board.SetGPIO(0x00200000, 0x00300000))
	v, err = board.ReadGPIO()
	require.NoError(t, err)
	require.Equal(t, uint32(0x00200080), v)
}

func TestMonitoringLines(t *testing.T) {
	t.Parallel()

	board := sim.NewBoard(1)

	for sensor := 0; sensor < 8; sensor++ {
		temp, err := board.ReadTemperature(sensor)
		require.NoError(t, err)
		require.InDelta(t, 25+0.3*float64(sensor), temp, 1)
	}
	_, err := board.ReadTemperature(8)
	require.Error(t, err)

	v, err := board.ReadVoltage("sipm")
	require.NoError(t, err)
	require.InDelta(t, 40.5, v, 0.5)

	_, err = board.ReadVoltage("laser")
	require.Error(t, err)
}
