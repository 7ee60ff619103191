// Package queuedepth shares the pending ticket counts through Redis so
// dashboards and other instances can read them without calling the service.
package queuedepth

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

const (
	// Key is the hash holding the latest snapshot.
	Key = "jobticket:queue-depth"
	// Channel receives every published snapshot as JSON.
	Channel = "jobticket:queue-depth:events"

	fieldCopy  = "copy"
	fieldPrint = "print"
)

// Publisher writes queue-depth snapshots to Redis.
type Publisher struct {
	client redis.Cmdable
}

// NewPublisher returns a publisher over client.
func NewPublisher(client redis.Cmdable) *Publisher {
	return &Publisher{client: client}
}

// Publish stores the snapshot and announces it to subscribers.
func (p *Publisher) Publish(ctx context.Context, stats domain.QueueStats) error {
	if err := p.client.HSet(ctx, Key, fieldCopy, stats.CopyTickets, fieldPrint, stats.PrintTickets).Err(); err != nil {
		return fmt.Errorf("store queue depth: %w", err)
	}
	msg, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, Channel, string(msg)).Err(); err != nil {
		return fmt.Errorf("publish queue depth: %w", err)
	}
	return nil
}

// Load reads the last stored snapshot. A missing hash yields zero counts.
func (p *Publisher) Load(ctx context.Context) (domain.QueueStats, error) {
	values, err := p.client.HGetAll(ctx, Key).Result()
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("load queue depth: %w", err)
	}
	var stats domain.QueueStats
	if stats.CopyTickets, err = atoi(values[fieldCopy]); err != nil {
		return domain.QueueStats{}, err
	}
	if stats.PrintTickets, err = atoi(values[fieldPrint]); err != nil {
		return domain.QueueStats{}, err
	}
	return stats, nil
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("queue depth field %q: %w", s, err)
	}
	return n, nil
}
