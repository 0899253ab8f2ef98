package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/redteam-collab/internal"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/google/uuid"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*User, *Session, error)
	DirectoryLogin(ctx context.Context, dto LoginDTO) (*User, *Session, error)
	Register(ctx context.Context, dto RegisterDTO) (*User, error)
	Logout(ctx context.Context, sessionID string)
	ResolveSession(ctx context.Context, sessionID string) (*User, error)
	TestDirectory(ctx context.Context) DirectoryTestResult
	DirectoryEnabled() bool
}

// Service is the main auth service with dependencies
type Service struct {
	repo      Repository
	login     Strategy
	directory *DirectoryStrategy
	sessions  SessionStore
	hasher    PasswordHasher
	logger    *slog.Logger
}

// NewService wires the login strategy chosen by configuration. directory may
// be nil when the directory is disabled.
func NewService(repo Repository, login Strategy, directory *DirectoryStrategy, sessions SessionStore, hasher PasswordHasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		login:     login,
		directory: directory,
		sessions:  sessions,
		hasher:    hasher,
		logger:    logger,
	}
}

// SelectStrategy picks the strategy named by security.login_strategy.
func SelectStrategy(name string, local *LocalStrategy, directory *DirectoryStrategy) (Strategy, error) {
	switch name {
	case "", "local":
		return local, nil
	case "ldap":
		if directory == nil {
			return nil, internal.ErrConfiguration.WithDetails(map[string]string{"login_strategy": "ldap requires directory.enabled"})
		}
		return directory, nil
	}
	return nil, internal.ErrConfiguration.WithDetails(map[string]string{"login_strategy": name})
}

func (s *Service) DirectoryEnabled() bool { return s.directory != nil }

func (s *Service) Login(ctx context.Context, dto LoginDTO) (*User, *Session, error) {
	return s.authenticate(ctx, s.login, dto)
}

func (s *Service) DirectoryLogin(ctx context.Context, dto LoginDTO) (*User, *Session, error) {
	if s.directory == nil {
		return nil, nil, internal.ErrConfiguration
	}
	return s.authenticate(ctx, s.directory, dto)
}

func (s *Service) authenticate(ctx context.Context, strategy Strategy, dto LoginDTO) (*User, *Session, error) {
	if err := dto.Validate(); err != nil {
		return nil, nil, err
	}

	u, err := strategy.Authenticate(ctx, dto.Username, dto.Password)
	if err != nil {
		s.logger.Info("login failed", "strategy", strategy.Name(), "username", dto.Username, "error", err)
		return nil, nil, publicError(err)
	}

	sess, err := s.sessions.Create(ctx, *u)
	if err != nil {
		return nil, nil, internal.NewInternalError("failed to create session", err)
	}

	s.logger.Info("login succeeded", "strategy", strategy.Name(), "user_id", u.ID, "role", u.Role)
	return u, sess, nil
}

// Register creates a pending local account. No session is granted.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByUsername(ctx, dto.Username); err == nil {
		return nil, internal.ErrUsernameTaken
	} else if !errors.Is(err, internal.ErrUserNotFound) {
		return nil, internal.NewInternalError("failed to check username", err)
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	username := dto.Username
	row := &userdm.User{
		ID:           uuid.NewString(),
		Username:     &username,
		PasswordHash: &hash,
		Email:        dto.Email,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Role:         string(coreuser.RoleAnalyst),
		Status:       string(coreuser.StatusPending),
		AuthSource:   string(coreuser.SourceLocal),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if errors.Is(err, internal.ErrUsernameTaken) {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to create user", err)
	}

	s.logger.Info("user registered", "user_id", row.ID, "username", username)
	return FromModel(row), nil
}

// Logout is idempotent.
func (s *Service) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	s.sessions.Delete(ctx, sessionID)
}

// ResolveSession backs the authorization gate: the session must exist and
// the live user row must be active.
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*User, error) {
	sess, ok := s.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, internal.ErrUnauthenticated
	}

	row, err := s.repo.GetByID(ctx, sess.User.ID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			s.sessions.Delete(ctx, sessionID)
			return nil, internal.ErrUnauthenticated
		}
		return nil, internal.NewInternalError("failed to load session user", err)
	}

	u := FromModel(row)
	if err := CheckStatus(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) TestDirectory(ctx context.Context) DirectoryTestResult {
	if s.directory == nil {
		return DirectoryTestResult{
			Error:         "directory authentication is disabled",
			Configuration: map[string]string{},
		}
	}
	return s.directory.Test(ctx)
}
