package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StatusFn returns the values for one status line.
type StatusFn func() (activeSpans int, wsClients int, feedsUp int)

// RunStatusTicker logs a one-line summary every interval until ctx is
// cancelled.
func RunStatusTicker(ctx context.Context, interval time.Duration, logger *zap.SugaredLogger, fn StatusFn) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			spans, clients, feeds := fn()
			logger.Infow("status",
				"activeSpans", spans,
				"wsClients", clients,
				"feedsUp", feeds,
			)
		}
	}
}
