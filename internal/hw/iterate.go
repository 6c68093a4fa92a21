package hw

import (
	"context"
	"iter"

	"github.com/vk/tileqc/internal/ctxlog"
)

// Iterate is the loop-iteration capability. Procedures range over the
// returned sequence instead of a raw counter so long scans report progress
// and stop at the next boundary when the invocation is canceled. GUI
// sessions substitute their own implementation to drive progress bars.
type Iterate func(n int, desc string) iter.Seq[int]

// LogIterator is the engine default: progress through the context logger,
// cancellation checked between iterations.
func LogIterator(ctx context.Context) Iterate {
	logger := ctxlog.FromContext(ctx)
	return func(n int, desc string) iter.Seq[int] {
		return func(yield func(int) bool) {
			logger.Debug("Loop started.", "desc", desc, "total", n)
			for i := 0; i < n; i++ {
				if ctx.Err() != nil {
					logger.Warn("Loop stopped early.", "desc", desc, "done", i, "total", n)
					return
				}
				if !yield(i) {
					return
				}
			}
			logger.Debug("Loop finished.", "desc", desc, "total", n)
		}
	}
}
