package services

import (
	"context"
	"errors"

	"motodean/internal/domain"
	"motodean/internal/repos"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid email or password")

type AuthService struct {
	Users *repos.UserRepo
	Audit *AuditTrail
}

// Login checks the password, binds the session to the user and records a login entry.
func (s *AuthService) Login(ctx context.Context, sid, email, password, ip string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, ErrBadCreds
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	if s.Audit != nil {
		_ = s.Audit.Record(ctx, nil, Entry(domain.ActorFromUser(*u, ip), domain.EntitySystem, nil, domain.AuditLogin,
			nil, nil, "User logged in"))
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string, actor domain.Actor) error {
	if err := s.Users.UnbindSession(ctx, sid); err != nil {
		return err
	}
	if s.Audit != nil && actor.ID > 0 {
		_ = s.Audit.Record(ctx, nil, Entry(actor, domain.EntitySystem, nil, domain.AuditLogout, nil, nil, "User logged out"))
	}
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}
