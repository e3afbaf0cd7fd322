package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
)

const (
	OutboxPending   = "pending"
	OutboxPublished = "published"
	OutboxFailed    = "failed"
)

// OutboxEvent is written in the same transaction as the change it describes and
// published afterwards by the relay.
type OutboxEvent struct {
	ID            int64      `db:"id"`
	EventID       string     `db:"event_id"`
	AggregateType string     `db:"aggregate_type"`
	AggregateID   string     `db:"aggregate_id"`
	EventType     string     `db:"event_type"`
	Payload       string     `db:"payload"`
	Status        string     `db:"status"`
	Attempts      int        `db:"attempts"`
	LastError     string     `db:"last_error"`
	CreatedAt     time.Time  `db:"created_at"`
	PublishedAt   *time.Time `db:"published_at"`
}

type OutboxRepo struct{ db *sqlx.DB }

func NewOutboxRepo(db *sqlx.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// Add enqueues an event on the caller's transaction.
func (r *OutboxRepo) Add(ctx context.Context, q sqlx.ExtContext, aggregateType, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		ulid.Make().String(), aggregateType, aggregateID, eventType, string(body), OutboxPending, now())
	if err != nil {
		return fmt.Errorf("add outbox event %s: %w", eventType, err)
	}
	return nil
}

// Pending returns up to limit unpublished events in insertion order.
func (r *OutboxRepo) Pending(ctx context.Context, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []OutboxEvent
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, status, attempts, last_error, created_at, published_at
		FROM outbox_events
		WHERE status = ?
		ORDER BY id
		LIMIT ?`), OutboxPending, limit)
	return out, err
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE outbox_events SET status = ?, published_at = ? WHERE id = ?`),
		OutboxPublished, now(), id)
	return err
}

// MarkAttemptFailed records a failed publish and gives up on the event after maxAttempts.
func (r *OutboxRepo) MarkAttemptFailed(ctx context.Context, id int64, cause error, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE outbox_events
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?`), cause.Error(), maxAttempts, OutboxFailed, id)
	return err
}

func (r *OutboxRepo) Get(ctx context.Context, id int64) (OutboxEvent, error) {
	var e OutboxEvent
	err := r.db.GetContext(ctx, &e, r.db.Rebind(`
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, status, attempts, last_error, created_at, published_at
		FROM outbox_events WHERE id = ?`), id)
	return e, notFound(err)
}
