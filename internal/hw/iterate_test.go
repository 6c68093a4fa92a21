package hw_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/tileqc/internal/hw"
)

func TestLogIterator_YieldsAllIndices(t *testing.T) {
	t.Parallel()

	iterate := hw.LogIterator(context.Background())

	var got []int
	for i := range iterate(4, "scan") {
		got = append(got, i)
	}
	require.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestLogIterator_StopsAtBoundaryWhenCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	iterate := hw.LogIterator(ctx)

	var got []int
	for i := range iterate(10, "scan") {
		got = append(got, i)
		if i == 2 {
			cancel()
		}
	}
	require.Equal(t, []int{0, 1, 2}, got, "cancellation takes effect at the next boundary, not mid-step")
}

func TestLogIterator_SequenceIsRestartable(t *testing.T) {
	t.Parallel()

	iterate := hw.LogIterator(context.Background())
	seq := iterate(2, "scan")

	count := 0
	for range seq {
		count++
	}
	for range seq {
		count++
	}
	require.Equal(t, 4, count)
}
