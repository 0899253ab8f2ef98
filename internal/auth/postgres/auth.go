package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// Repository is the credential store over the users table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.Repository {
	return &Repository{db: db}
}

// GetByUsername is an exact, case-sensitive match.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*userdm.User, error) {
	var u userdm.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*userdm.User, error) {
	var u userdm.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, u *userdm.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if datamodel.IsUniqueViolation(err) {
		return internal.ErrUsernameTaken
	}
	return err
}

// Update writes every column, including NULLs for cleared pointers.
func (r *Repository) Update(ctx context.Context, u *userdm.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}
