package server

import (
	"context"
	"log/slog"
	"time"
)

// WatchReadiness runs check now and then every interval until ctx ends,
// reporting each change of outcome through set.
func WatchReadiness(ctx context.Context, check func(ctx context.Context) error, interval time.Duration, set func(serving bool), logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	var last *bool
	probe := func() {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(cctx)
		cancel()
		serving := err == nil
		if last != nil && *last == serving {
			return
		}
		last = &serving
		if serving {
			logger.Info("health.readiness.serving")
		} else {
			logger.Warn("health.readiness.not_serving", "error", err)
		}
		set(serving)
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
