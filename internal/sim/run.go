package sim

import (
	"context"
)

// Run drives the loop at the configured render rate until ctx is done,
// polling display for the viewport and, when canvas is non-nil, rendering
// every tick. It is the loop for headless operation; windowed displays call
// Advance and Render from their own update callbacks instead.
func (e *Engine) Run(ctx context.Context, display Display, canvas Canvas) error {
	ticker := e.clock.NewTicker(e.renderInterval)
	defer ticker.Stop()

	logf("loop started: render every %v, simulate every %v, batch every %v", e.renderInterval, e.simInterval, e.batchInterval)
	for {
		select {
		case <-ctx.Done():
			logf("loop stopping: %v", context.Cause(ctx))
			return nil
		case <-ticker.C():
			e.Advance(display.Viewport())
			if canvas != nil {
				e.Render(canvas)
			}
		}
	}
}
