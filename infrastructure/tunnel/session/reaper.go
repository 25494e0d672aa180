package session

import (
	"context"
	"meshvpn/application/logging"
	"meshvpn/application/timing"
	"time"
)

// IdleReaper removes peers that stopped sending.
type IdleReaper interface {
	ReapIdle(now, timeout time.Duration) int
}

// RunIdleReaperLoop periodically removes peers that have been idle for at
// least timeout. It blocks until ctx is cancelled.
func RunIdleReaperLoop(
	ctx context.Context,
	reaper IdleReaper,
	clock timing.Clock,
	timeout, interval time.Duration,
	logger logging.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reaper.ReapIdle(clock.Now(), timeout); n > 0 {
				logger.Printf("removed %d timed out peer(s)", n)
			}
		}
	}
}
