package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second
)

// RunWithBackoff repeatedly calls connect until ctx is cancelled,
// doubling the retry delay (capped at maxReconnectDelay) after each
// error and resetting it after a clean run.
func RunWithBackoff(ctx context.Context, logger *zap.SugaredLogger, name string, onReconnect func(), connect func(ctx context.Context) error) {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warnw("feed error, reconnecting", "feed", name, "err", err, "delay", delay)
			if onReconnect != nil {
				onReconnect()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}
		delay = reconnectDelay
	}
}
