package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"motodean/internal/domain"

	"github.com/jmoiron/sqlx"
)

// AuditRepo is append-only: there is no update or delete.
type AuditRepo struct{ db *sqlx.DB }

func NewAuditRepo(db *sqlx.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) DB() *sqlx.DB { return r.db }

func (r *AuditRepo) Append(ctx context.Context, q sqlx.ExtContext, e *domain.AuditEntry) error {
	if q == nil {
		q = r.db
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	err := sqlx.GetContext(ctx, q, &e.ID, q.Rebind(`
		INSERT INTO audit_log
		  (entity_type, entity_id, action, old_values, new_values, actor_id, actor_email, actor_role, ip_address, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		e.EntityType, e.EntityID, e.Action, e.OldValues, e.NewValues,
		e.ActorID, e.ActorEmail, e.ActorRole, e.IPAddress, e.Details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

type AuditFilter struct {
	ActionType domain.AuditAction
	EntityType domain.EntityType
	EntityID   int64
	From       time.Time
	To         time.Time
	ActorEmail string
	ActorID    int64
	Search     string
	Limit      int
	Offset     int
}

func (f AuditFilter) where() (string, []any) {
	conds, args := []string{"1=1"}, []any{}
	if f.ActionType != "" {
		conds = append(conds, "action = ?")
		args = append(args, f.ActionType)
	}
	if f.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.EntityID > 0 {
		conds = append(conds, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UTC())
	}
	if f.ActorEmail != "" {
		conds = append(conds, "LOWER(actor_email) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.ActorEmail)+"%")
	}
	if f.ActorID > 0 {
		conds = append(conds, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		conds = append(conds, "(LOWER(details) LIKE ? OR LOWER(actor_email) LIKE ? OR LOWER(COALESCE(new_values, '')) LIKE ?)")
		args = append(args, like, like, like)
	}
	return strings.Join(conds, " AND "), args
}

// List returns matching entries newest first together with the unpaged count.
func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]domain.AuditEntry, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	where, args := f.where()
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM audit_log WHERE `+where), args...); err != nil {
		return nil, 0, err
	}
	var out []domain.AuditEntry
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT id, entity_type, entity_id, action, old_values, new_values, actor_id, actor_email, actor_role, ip_address, details, created_at
		FROM audit_log
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`), append(args, f.Limit, f.Offset)...)
	return out, total, err
}

type CountRow struct {
	Key   string `db:"k" json:"key"`
	Count int    `db:"n" json:"count"`
}

type AuditStats struct {
	Total      int        `json:"total"`
	Last24h    int        `json:"last_24h"`
	Last7d     int        `json:"last_7d"`
	ByAction   []CountRow `json:"by_action"`
	ByEntity   []CountRow `json:"by_entity"`
	ByActor    []CountRow `json:"by_actor"`
	ComputedAt time.Time  `json:"computed_at"`
}

func (r *AuditRepo) Stats(ctx context.Context, at time.Time) (AuditStats, error) {
	st := AuditStats{ComputedAt: at}
	counts := []struct {
		dst *int
		q   string
		arg []any
	}{
		{&st.Total, `SELECT COUNT(*) FROM audit_log`, nil},
		{&st.Last24h, `SELECT COUNT(*) FROM audit_log WHERE created_at >= ?`, []any{at.Add(-24 * time.Hour)}},
		{&st.Last7d, `SELECT COUNT(*) FROM audit_log WHERE created_at >= ?`, []any{at.Add(-7 * 24 * time.Hour)}},
	}
	for _, c := range counts {
		if err := r.db.GetContext(ctx, c.dst, r.db.Rebind(c.q), c.arg...); err != nil {
			return AuditStats{}, err
		}
	}
	groups := []struct {
		dst *[]CountRow
		q   string
	}{
		{&st.ByAction, `SELECT action AS k, COUNT(*) AS n FROM audit_log GROUP BY action ORDER BY n DESC, k`},
		{&st.ByEntity, `SELECT entity_type AS k, COUNT(*) AS n FROM audit_log GROUP BY entity_type ORDER BY n DESC, k`},
		{&st.ByActor, `SELECT actor_email AS k, COUNT(*) AS n FROM audit_log GROUP BY actor_email ORDER BY n DESC, k LIMIT 10`},
	}
	for _, g := range groups {
		if err := r.db.SelectContext(ctx, g.dst, g.q); err != nil {
			return AuditStats{}, err
		}
	}
	return st, nil
}
