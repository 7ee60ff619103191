package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/service"
)

// StatsSource yields the current queue-depth snapshot.
type StatsSource interface {
	Stats() domain.QueueStats
}

// StartQueueDepthWorker republishes the snapshot every interval so a
// restarted or flushed Redis catches up without waiting for the next ticket
// change. It returns when ctx is done. A non-positive interval disables it.
func StartQueueDepthWorker(ctx context.Context, source StatsSource, publisher service.QueueDepthPublisher, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 || source == nil || publisher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	publish := func() {
		if err := publisher.Publish(ctx, source.Stats()); err != nil && ctx.Err() == nil {
			logger.Warn("queue depth resync failed", zap.Error(err))
		}
	}
	publish()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publish()
		}
	}
}
