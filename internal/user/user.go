package user

import (
	"context"
	"time"

	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
)

// User is the administrative view of an account.
type User struct {
	ID         string              `json:"id"`
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	FirstName  string              `json:"firstName"`
	LastName   string              `json:"lastName"`
	Role       coreuser.Role       `json:"role"`
	Status     coreuser.Status     `json:"status"`
	AuthSource coreuser.AuthSource `json:"authSource"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Profile is what every active user may see about another.
type Profile struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	Role      coreuser.Role `json:"role"`
}

func (u *User) ToProfile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

func FromDataModel(m *userdm.User) *User {
	u := &User{
		ID:         m.ID,
		Email:      m.Email,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Role:       coreuser.NormalizeRole(m.Role),
		Status:     coreuser.NormalizeStatus(m.Status),
		AuthSource: coreuser.SourceLocal,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if src, ok := coreuser.ParseAuthSource(m.AuthSource); ok {
		u.AuthSource = src
	}
	if m.Username != nil {
		u.Username = *m.Username
	}
	return u
}

// Repository returns internal.ErrUserNotFound for missing rows and
// internal.ErrUsernameTaken on duplicate usernames.
type Repository interface {
	// List filters by status when status is non-empty. Oldest first.
	List(ctx context.Context, status coreuser.Status) ([]*userdm.User, error)
	GetByID(ctx context.Context, id string) (*userdm.User, error)
	GetByUsername(ctx context.Context, username string) (*userdm.User, error)
	Create(ctx context.Context, u *userdm.User) error
	Update(ctx context.Context, u *userdm.User) error
	// Delete refuses with internal.ErrUserInUse while the user still owns
	// findings, comments, reports, messages or attachments.
	Delete(ctx context.Context, id string) error
}

// SessionRevoker drops every live session of a user.
type SessionRevoker interface {
	DeleteByUser(ctx context.Context, userID string) int
}
