package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/frahmantamala/redteam-collab/internal"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
)

// LocalStrategy checks credentials against the users table.
type LocalStrategy struct {
	repo   Repository
	hasher PasswordHasher
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewLocalStrategy(repo Repository, hasher PasswordHasher, logger *slog.Logger) *LocalStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStrategy{repo: repo, hasher: hasher, logger: logger}
}

func (s *LocalStrategy) Name() string { return "local" }

func (s *LocalStrategy) Authenticate(ctx context.Context, username, password string) (*User, error) {
	row, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			s.burn(password)
			return nil, internal.ErrInvalidCredentials
		}
		return nil, internal.NewInternalError("failed to load user", err)
	}

	u := FromModel(row)
	if !u.AuthSource.HasLocalPassword() || row.PasswordHash == nil || *row.PasswordHash == "" {
		s.burn(password)
		s.logger.Info("local login for account without password", "user_id", u.ID, "auth_source", u.AuthSource)
		return nil, internal.ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, *row.PasswordHash) {
		return nil, internal.ErrInvalidCredentials
	}

	if err := CheckStatus(u); err != nil {
		return nil, err
	}
	return u, nil
}

// burn spends one hash verification so unknown usernames cost the same as
// wrong passwords.
func (s *LocalStrategy) burn(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-real-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		s.hasher.Verify(password, s.dummyHash)
	}
}

// CheckStatus rejects principals that may not hold a session.
func CheckStatus(u *User) error {
	switch u.Status {
	case coreuser.StatusActive:
		return nil
	case coreuser.StatusPending:
		return internal.ErrPendingApproval.WithDetails(map[string]string{"status": string(u.Status)})
	default:
		return internal.ErrAccountInactive.WithDetails(map[string]string{"status": string(u.Status)})
	}
}
