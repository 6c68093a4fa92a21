package pedestalscan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitLine_RecoversExactLine(t *testing.T) {
	t.Parallel()

	xs := []float64{-2, -1, 0, 1, 2}
	ys := make([]float64, len(xs))
	sigmas := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = -1.5*x + 85
		sigmas[i] = 1
	}

	slope, intercept, err := fitLine(xs, ys, sigmas)
	require.NoError(t, err)
	require.InDelta(t, -1.5, slope, 1e-9)
	require.InDelta(t, 85, intercept, 1e-9)
}

func TestFitLine_WeightsDownNoisyPoints(t *testing.T) {
	t.Parallel()

	xs := []float64{-2, -1, 0, 1, 2}
	ys := []float64{88, 86.5, 85, 83.5, 1000} // last point is garbage
	sigmas := []float64{1, 1, 1, 1, 1e6}      // and known to be

	slope, _, err := fitLine(xs, ys, sigmas)
	require.NoError(t, err)
	require.InDelta(t, -1.5, slope, 1e-3)
}

func TestFitLine_FailsOnDegenerateScan(t *testing.T) {
	t.Parallel()

	xs := []float64{1, 1, 1}
	ys := []float64{85, 85, 85}
	sigmas := []float64{1, 1, 1}

	_, _, err := fitLine(xs, ys, sigmas)
	require.Error(t, err)
}

func TestFitLine_FailsOnFlatResponse(t *testing.T) {
	t.Parallel()

	xs := []float64{-2, -1, 0, 1, 2}
	ys := []float64{85, 85, 85, 85, 85}
	sigmas := []float64{1, 1, 1, 1, 1}

	_, _, err := fitLine(xs, ys, sigmas)
	require.Error(t, err, "a flat response cannot project the target onto a shift")
}

func TestChannelStats(t *testing.T) {
	t.Parallel()

	data := [][]float64{
		{2, 4, 4, 4, 5, 5, 7, 9},
		{10, 10, 10},
	}

	mean, sigma := channelStats(data)
	require.InDelta(t, 5, mean[0], 1e-9)
	require.InDelta(t, 2, sigma[0], 1e-9)
	require.InDelta(t, 10, mean[1], 1e-9)
	require.InDelta(t, 0, sigma[1], 1e-9)
	require.True(t, !math.IsNaN(sigma[1]))
}
