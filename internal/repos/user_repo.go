package repos

import (
	"context"

	"motodean/internal/domain"

	"github.com/jmoiron/sqlx"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id, email, first_name, last_name, password_hash, role`

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER(?)`), email)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Create stores a user whose password is already hashed.
func (r *UserRepo) Create(ctx context.Context, q sqlx.ExtContext, u *domain.User) error {
	if q == nil {
		q = r.DB
	}
	return sqlx.GetContext(ctx, q, &u.ID, q.Rebind(`
		INSERT INTO users (email, first_name, last_name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`), u.Email, u.FirstName, u.LastName, u.Hash, u.Role, now())
}

func (r *UserRepo) BindSession(ctx context.Context, sid string, userID int64) error {
	t := now()
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		INSERT INTO sessions (id, user_id, created_at, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id, last_seen = excluded.last_seen`), sid, userID, t, t)
	return err
}

func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`
		SELECT u.id, u.email, u.first_name, u.last_name, u.password_hash, u.role
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?`), sid)
	if err != nil {
		return nil, notFound(err)
	}
	_, _ = r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE sessions SET last_seen = ? WHERE id = ?`), now(), sid)
	return &u, nil
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE sessions SET user_id = NULL, last_seen = ? WHERE id = ?`), now(), sid)
	return err
}
