package realtime

import (
	"context"
	"log"
	"time"
)

const (
	minReconnectBackoff = 500 * time.Millisecond
	maxReconnectBackoff = 30 * time.Second
)

// reconnectLoop runs listen until ctx is cancelled. A failed session is retried
// after a capped exponential backoff that resets once listen reports a connection.
func reconnectLoop(ctx context.Context, backend string, minBackoff, maxBackoff time.Duration, listen func(ctx context.Context, connected func()) error) error {
	backoff := minBackoff
	for {
		err := listen(ctx, func() { backoff = minBackoff })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("realtime: %s listener error=%v retry_in=%s", backend, err, backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
