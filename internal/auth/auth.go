package auth

import (
	"context"
	"time"

	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
)

type ctxKey string

const ContextUserKey ctxKey = "user"

// User is the authenticated principal attached to a request. It never
// carries the password hash.
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
}

func (u *User) IsAdmin() bool { return u != nil && u.Role.IsAdmin() }

func (u *User) IsLeadOrAbove() bool { return u != nil && u.Role.IsLeadOrAbove() }

// DisplayName falls back to the username when no name parts are set.
func (u *User) DisplayName() string {
	return coreuser.DisplayName(u.FirstName, u.LastName, u.Username)
}

// FromModel converts a stored row into a principal, normalising legacy
// role and status values.
func FromModel(m *userdm.User) *User {
	if m == nil {
		return nil
	}
	u := &User{
		ID:         m.ID,
		Email:      m.Email,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Role:       coreuser.NormalizeRole(m.Role),
		Status:     coreuser.NormalizeStatus(m.Status),
		AuthSource: coreuser.SourceLocal,
		CreatedAt:  m.CreatedAt,
	}
	if src, ok := coreuser.ParseAuthSource(m.AuthSource); ok {
		u.AuthSource = src
	}
	if m.Username != nil {
		u.Username = *m.Username
	}
	return u
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*User)
	return u, ok && u != nil
}

func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

// Strategy verifies a username/password pair and returns the principal.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, username, password string) (*User, error)
}

// PasswordHasher is satisfied by cryptox.ScryptHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

// Repository is the credential store. Lookups return internal.ErrUserNotFound
// when no row matches.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*userdm.User, error)
	GetByID(ctx context.Context, id string) (*userdm.User, error)
	Create(ctx context.Context, u *userdm.User) error
	Update(ctx context.Context, u *userdm.User) error
}
