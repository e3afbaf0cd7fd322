// Package outbox publishes events that were committed alongside the state change
// they describe.
package outbox

import (
	"context"
	"time"

	"motodean/internal/repos"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Relay struct {
	repo        *repos.OutboxRepo
	pub         Publisher
	log         *zap.Logger
	interval    time.Duration
	batch       int
	maxAttempts int
}

func NewRelay(repo *repos.OutboxRepo, pub Publisher, logger *zap.Logger, interval time.Duration) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Relay{repo: repo, pub: pub, log: logger, interval: interval, batch: 100, maxAttempts: 5}
}

// RunOnce publishes one batch of pending events and reports how many went out and
// how many failed. After a failure the remaining events of the same aggregate wait
// for a later batch, so each aggregate's events are published in order.
func (r *Relay) RunOnce(ctx context.Context) (published, failed int, err error) {
	events, err := r.repo.Pending(ctx, r.batch)
	if err != nil {
		return 0, 0, err
	}
	held := map[string]bool{}
	for _, e := range events {
		key := e.AggregateType + ":" + e.AggregateID
		if held[key] {
			continue
		}
		if perr := r.pub.Publish(ctx, e); perr != nil {
			failed++
			held[key] = true
			r.log.Warn("outbox publish failed",
				zap.String("event_id", e.EventID), zap.Int("attempt", e.Attempts+1), zap.Error(perr))
			if merr := r.repo.MarkAttemptFailed(ctx, e.ID, perr, r.maxAttempts); merr != nil {
				return published, failed, merr
			}
			continue
		}
		if merr := r.repo.MarkPublished(ctx, e.ID); merr != nil {
			return published, failed, merr
		}
		published++
	}
	return published, failed, nil
}

// Run polls until ctx is cancelled. After a batch with failures the next poll is
// delayed by an exponential backoff instead of the regular interval.
func (r *Relay) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	b.MaxInterval = 20 * r.interval
	b.MaxElapsedTime = 0

	wait := r.interval
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		n, failed, err := r.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			r.log.Error("outbox relay batch failed", zap.Error(err))
			wait = b.NextBackOff()
		case failed > 0:
			wait = b.NextBackOff()
		default:
			b.Reset()
			wait = r.interval
		}
		if n > 0 {
			r.log.Debug("outbox relay published", zap.Int("count", n))
		}
	}
}
