package services

import (
	"context"
	"fmt"
	"time"

	"motodean/internal/domain"
	"motodean/internal/repos"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// AuditTrail records who changed what. Writes are best-effort: a failed entry is
// logged and reported, but never undoes the change it describes.
type AuditTrail struct {
	repo *repos.AuditRepo
	log  *zap.Logger
	now  func() time.Time
}

func NewAuditTrail(repo *repos.AuditRepo, logger *zap.Logger) *AuditTrail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditTrail{repo: repo, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends e. Given a transaction, the insert runs behind a savepoint so a
// failure leaves the rest of the transaction intact. With q == nil it writes on its own.
// The returned error wraps ErrAuditWriteFailed and is informational.
func (a *AuditTrail) Record(ctx context.Context, q sqlx.ExtContext, e domain.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = a.now()
	}
	var err error
	if q == nil {
		err = a.repo.Append(ctx, nil, &e)
	} else {
		err = repos.Savepoint(ctx, q, "audit_entry", func() error {
			return a.repo.Append(ctx, q, &e)
		})
	}
	if err != nil {
		a.log.Error("audit write failed",
			zap.String("entity_type", string(e.EntityType)),
			zap.Int64p("entity_id", e.EntityID),
			zap.String("action", string(e.Action)),
			zap.Int64("actor_id", e.ActorID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
	}
	return nil
}

// Entry fills the actor columns of a new audit entry.
func Entry(actor domain.Actor, et domain.EntityType, id *int64, action domain.AuditAction, before, after domain.Snapshot, details string) domain.AuditEntry {
	return domain.AuditEntry{
		EntityType: et,
		EntityID:   id,
		Action:     action,
		OldValues:  before,
		NewValues:  after,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		IPAddress:  actor.IP,
		Details:    details,
	}
}

type AuditPage struct {
	Entries []domain.AuditEntry `json:"logs"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

func (a *AuditTrail) Logs(ctx context.Context, f repos.AuditFilter) (AuditPage, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	entries, total, err := a.repo.List(ctx, f)
	if err != nil {
		return AuditPage{}, fmt.Errorf("list audit logs: %w", err)
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return AuditPage{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (a *AuditTrail) Stats(ctx context.Context) (repos.AuditStats, error) {
	st, err := a.repo.Stats(ctx, a.now())
	if err != nil {
		return repos.AuditStats{}, fmt.Errorf("audit stats: %w", err)
	}
	return st, nil
}
