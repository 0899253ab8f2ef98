package user

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	"github.com/frahmantamala/redteam-collab/internal/core/events"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/google/uuid"
)

var (
	errDirectoryPassword = internal.NewValidationError("Directory accounts change their password in the directory", internal.ErrCodeValidationFailed)
	errWrongPassword     = internal.NewValidationFieldError("currentPassword", "Current password is incorrect", internal.ErrCodeInvalidCredentials)
)

type ServiceAPI interface {
	ListProfiles(ctx context.Context) ([]Profile, error)
	List(ctx context.Context) ([]*User, error)
	ListPending(ctx context.Context) ([]*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, actor *auth.User, id string, dto UpdateProfileDTO) (*User, error)
	ChangePassword(ctx context.Context, actor *auth.User, id string, dto ChangePasswordDTO) error
	Create(ctx context.Context, actor *auth.User, dto CreateUserDTO) (*User, error)
	Approve(ctx context.Context, actor *auth.User, id string) (*User, error)
	UpdateStatus(ctx context.Context, actor *auth.User, id string, dto UpdateStatusDTO) (*User, error)
	UpdateRole(ctx context.Context, actor *auth.User, id string, dto UpdateRoleDTO) (*User, error)
	ResetPassword(ctx context.Context, actor *auth.User, id string, dto ResetPasswordDTO) error
	Delete(ctx context.Context, actor *auth.User, id string) error
}

type Service struct {
	repo     Repository
	sessions SessionRevoker
	hasher   auth.PasswordHasher
	policy   *auth.ABACPolicy
	events   events.Publisher
	logger   *slog.Logger
}

func NewService(repo Repository, sessions SessionRevoker, hasher auth.PasswordHasher, policy *auth.ABACPolicy, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		sessions: sessions,
		hasher:   hasher,
		policy:   policy,
		events:   publisher,
		logger:   logger,
	}
}

// ListProfiles returns active accounts only.
func (s *Service) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.repo.List(ctx, coreuser.StatusActive)
	if err != nil {
		return nil, internal.NewInternalError("failed to list users", err)
	}
	profiles := make([]Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, FromDataModel(row).ToProfile())
	}
	return profiles, nil
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.list(ctx, "")
}

func (s *Service) ListPending(ctx context.Context) ([]*User, error) {
	return s.list(ctx, coreuser.StatusPending)
}

func (s *Service) list(ctx context.Context, status coreuser.Status) ([]*User, error) {
	rows, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, internal.NewInternalError("failed to list users", err)
	}
	users := make([]*User, 0, len(rows))
	for _, row := range rows {
		users = append(users, FromDataModel(row))
	}
	return users, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) load(ctx context.Context, id string) (*userdm.User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, internal.NewInternalError("failed to load user", err)
	}
	return row, nil
}

func (s *Service) save(ctx context.Context, row *userdm.User) error {
	if err := s.repo.Update(ctx, row); err != nil {
		return internal.NewInternalError("failed to update user", err)
	}
	return nil
}

func (s *Service) UpdateProfile(ctx context.Context, actor *auth.User, id string, dto UpdateProfileDTO) (*User, error) {
	if err := s.policy.CanUpdateProfile(actor, id); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if dto.Email != nil {
		row.Email = *dto.Email
	}
	if dto.FirstName != nil {
		row.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		row.LastName = *dto.LastName
	}
	if err := s.save(ctx, row); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", "user_id", id, "actor_id", actor.ID)
	return FromDataModel(row), nil
}

// ChangePassword is self-service only; admins use ResetPassword.
func (s *Service) ChangePassword(ctx context.Context, actor *auth.User, id string, dto ChangePasswordDTO) error {
	if actor == nil {
		return internal.ErrUnauthenticated
	}
	if actor.ID != id {
		return internal.ErrForbidden
	}
	if err := dto.Validate(); err != nil {
		return err
	}

	row, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !FromDataModel(row).AuthSource.HasLocalPassword() || row.PasswordHash == nil {
		return errDirectoryPassword
	}
	if !s.hasher.Verify(dto.CurrentPassword, *row.PasswordHash) {
		return errWrongPassword
	}

	if err := s.setPassword(ctx, row, dto.NewPassword); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", id)
	return nil
}

func (s *Service) setPassword(ctx context.Context, row *userdm.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	row.PasswordHash = &hash
	return s.save(ctx, row)
}

func (s *Service) Create(ctx context.Context, actor *auth.User, dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByUsername(ctx, dto.Username); err == nil {
		return nil, internal.ErrUsernameTaken
	} else if !errors.Is(err, internal.ErrUserNotFound) {
		return nil, internal.NewInternalError("failed to check username", err)
	}

	role := coreuser.RoleAnalyst
	if dto.Role != "" {
		role, _ = coreuser.ParseRole(dto.Role)
	}
	status := coreuser.StatusActive
	if dto.Status != "" {
		status, _ = coreuser.ParseStatus(dto.Status)
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
		Role:         string(role),
		Status:       string(status),
		AuthSource:   string(coreuser.SourceLocal),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if errors.Is(err, internal.ErrUsernameTaken) {
			return nil, internal.ErrUsernameTaken
		}
		return nil, internal.NewInternalError("failed to create user", err)
	}

	s.logger.Info("user created", "user_id", row.ID, "role", role, "status", status, "actor_id", actor.ID)
	return FromDataModel(row), nil
}

// Approve activates an account. user.approved fires only on the
// pending to active transition.
func (s *Service) Approve(ctx context.Context, actor *auth.User, id string) (*User, error) {
	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := coreuser.NormalizeStatus(row.Status)
	if previous == coreuser.StatusActive {
		return FromDataModel(row), nil
	}
	row.Status = string(coreuser.StatusActive)
	if err := s.save(ctx, row); err != nil {
		return nil, err
	}

	if previous == coreuser.StatusPending {
		if err := s.events.Publish(ctx, events.NewUserApprovedEvent(actor.ID, id)); err != nil {
			s.logger.Warn("failed to publish user approved event", "user_id", id, "error", err)
		}
	}
	s.logger.Info("user approved", "user_id", id, "actor_id", actor.ID)
	return FromDataModel(row), nil
}

func (s *Service) UpdateStatus(ctx context.Context, actor *auth.User, id string, dto UpdateStatusDTO) (*User, error) {
	if actor.ID == id {
		return nil, internal.ErrSelfProtection
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	status, _ := coreuser.ParseStatus(dto.Status)

	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if coreuser.NormalizeStatus(row.Status) == status {
		return FromDataModel(row), nil
	}
	row.Status = string(status)
	if err := s.save(ctx, row); err != nil {
		return nil, err
	}

	s.revoke(ctx, id)
	s.logger.Info("user status changed", "user_id", id, "status", status, "actor_id", actor.ID)
	return FromDataModel(row), nil
}

func (s *Service) UpdateRole(ctx context.Context, actor *auth.User, id string, dto UpdateRoleDTO) (*User, error) {
	if actor.ID == id {
		return nil, internal.ErrSelfProtection
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	role, _ := coreuser.ParseRole(dto.Role)

	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	current := coreuser.NormalizeRole(row.Role)
	if err := s.policy.CanAssignRole(actor, current, role); err != nil {
		return nil, err
	}
	if current == role {
		return FromDataModel(row), nil
	}
	row.Role = string(role)
	if err := s.save(ctx, row); err != nil {
		return nil, err
	}

	s.revoke(ctx, id)
	s.logger.Info("user role changed", "user_id", id, "from", current, "to", role, "actor_id", actor.ID)
	return FromDataModel(row), nil
}

func (s *Service) ResetPassword(ctx context.Context, actor *auth.User, id string, dto ResetPasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	row, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !FromDataModel(row).AuthSource.HasLocalPassword() {
		return errDirectoryPassword
	}
	if err := s.setPassword(ctx, row, dto.NewPassword); err != nil {
		return err
	}

	if actor.ID != id {
		s.revoke(ctx, id)
	}
	s.logger.Info("password reset", "user_id", id, "actor_id", actor.ID)
	return nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.User, id string) error {
	if actor.ID == id {
		return internal.ErrSelfProtection
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, internal.ErrUserInUse) || errors.Is(err, internal.ErrUserNotFound) {
			return err
		}
		return internal.NewInternalError("failed to delete user", err)
	}

	s.revoke(ctx, id)
	s.logger.Info("user deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}

func (s *Service) revoke(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if n := s.sessions.DeleteByUser(ctx, userID); n > 0 {
		s.logger.Info("sessions revoked", "user_id", userID, "count", n)
	}
}
