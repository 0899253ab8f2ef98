package auth

import (
	"strings"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (d *LoginDTO) Validate() error {
	d.Username = strings.TrimSpace(d.Username)
	return validation.NewValidator().
		Field("username", d.Username).Required().MaxLength(128).
		Field("password", d.Password).Required().MaxLength(validation.MaxPasswordLength).
		Validate()
}

// RegisterDTO creates a pending local account.
type RegisterDTO struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (d *RegisterDTO) Validate() error {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.TrimSpace(d.Email)
	v := validation.NewValidator().
		Field("username", d.Username).Required().Username().
		Field("password", d.Password).Required().MinLength(validation.MinRegistrationPasswordLength).MaxLength(validation.MaxPasswordLength).
		Field("firstName", d.FirstName).MaxLength(100).
		Field("lastName", d.LastName).MaxLength(100)
	if d.Email != "" {
		v = v.Field("email", d.Email).Email()
	}
	return v.Validate()
}

type LoginResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// DirectoryTestResult reports connectivity and which settings are missing.
type DirectoryTestResult struct {
	Connected     bool              `json:"connected"`
	Error         string            `json:"error,omitempty"`
	Configuration map[string]string `json:"configuration"`
}

func configState(v string) string {
	if v == "" {
		return "missing"
	}
	return "configured"
}

// publicError hides directory lookup misses behind the generic credential
// failure so callers cannot enumerate accounts.
func publicError(err error) error {
	if appErr, ok := internal.IsAppError(err); ok && appErr.Is(internal.ErrUserNotFound) {
		return internal.ErrInvalidCredentials
	}
	return err
}
