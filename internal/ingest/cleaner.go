package ingest

import (
	"context"
	"log/slog"
	"time"
)

// StartCleaner removes uploads older than ttl every interval until ctx is done.
func StartCleaner(ctx context.Context, store *FSStore, ttl, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	go cleanupLoop(ctx, store, ttl, interval, logger)
}

func cleanupLoop(ctx context.Context, store *FSStore, ttl, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.RemoveOlderThan(time.Now().Add(-ttl))
			if err != nil {
				logger.Warn("cleanup uploads failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired uploads removed", "count", n)
			}
		}
	}
}
