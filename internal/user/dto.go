package user

import (
	"strings"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/core/common/validation"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
)

func roleValidator(field string) func(interface{}) *internal.AppError {
	return func(v interface{}) *internal.AppError {
		s, _ := v.(string)
		if s == "" {
			return nil
		}
		if _, ok := coreuser.ParseRole(s); !ok {
			return internal.NewValidationFieldError(field, "role must be one of: admin, team_lead, analyst", internal.ErrCodeInvalidRole)
		}
		return nil
	}
}

func statusValidator(field string) func(interface{}) *internal.AppError {
	return func(v interface{}) *internal.AppError {
		s, _ := v.(string)
		if s == "" {
			return nil
		}
		if _, ok := coreuser.ParseStatus(s); !ok {
			return internal.NewValidationFieldError(field, "status must be one of: pending, active, suspended", internal.ErrCodeInvalidStatus)
		}
		return nil
	}
}

// UpdateProfileDTO changes only the fields that are present.
type UpdateProfileDTO struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

func (d *UpdateProfileDTO) Validate() error {
	v := validation.NewValidator()
	if d.Email != nil {
		trimmed := strings.TrimSpace(*d.Email)
		d.Email = &trimmed
		v.Field("email", trimmed).Email()
	}
	if d.FirstName != nil {
		v.Field("firstName", *d.FirstName).MaxLength(100)
	}
	if d.LastName != nil {
		v.Field("lastName", *d.LastName).MaxLength(100)
	}
	return v.Validate()
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (d *ChangePasswordDTO) Validate() error {
	return validation.NewValidator().
		Field("currentPassword", d.CurrentPassword).Required().
		Field("newPassword", d.NewPassword).Required().StrongPassword().
		Validate()
}

type CreateUserDTO struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

func (d *CreateUserDTO) Validate() error {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.TrimSpace(d.Email)
	return validation.NewValidator().
		Field("username", d.Username).Required().Username().
		Field("password", d.Password).Required().StrongPassword().
		Field("email", d.Email).Email().
		Field("firstName", d.FirstName).MaxLength(100).
		Field("lastName", d.LastName).MaxLength(100).
		Field("role", d.Role).Custom(roleValidator("role")).
		Field("status", d.Status).Custom(statusValidator("status")).
		Validate()
}

type UpdateStatusDTO struct {
	Status string `json:"status"`
}

func (d *UpdateStatusDTO) Validate() error {
	return validation.NewValidator().
		Field("status", d.Status).Required().Custom(statusValidator("status")).
		Validate()
}

type UpdateRoleDTO struct {
	Role string `json:"role"`
}

func (d *UpdateRoleDTO) Validate() error {
	return validation.NewValidator().
		Field("role", d.Role).Required().Custom(roleValidator("role")).
		Validate()
}

type ResetPasswordDTO struct {
	NewPassword string `json:"newPassword"`
}

func (d *ResetPasswordDTO) Validate() error {
	return validation.NewValidator().
		Field("newPassword", d.NewPassword).Required().StrongPassword().
		Validate()
}

type UserResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

type UsersResponse struct {
	Users []*User `json:"users"`
}

type ProfilesResponse struct {
	Users []Profile `json:"users"`
}
