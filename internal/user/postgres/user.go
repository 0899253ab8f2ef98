package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel"
	attachmentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/attachment"
	commentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/comment"
	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
	messagedm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/message"
	reportdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/report"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/frahmantamala/redteam-collab/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context, status coreuser.Status) ([]*userdm.User, error) {
	var users []*userdm.User
	q := r.db.WithContext(ctx).Order("created_at ASC")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	err := q.Find(&users).Error
	return users, err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*userdm.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*userdm.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *UserRepository) first(ctx context.Context, query string, arg interface{}) (*userdm.User, error) {
	var u userdm.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *userdm.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if datamodel.IsUniqueViolation(err) {
		return internal.ErrUsernameTaken
	}
	return err
}

func (r *UserRepository) Update(ctx context.Context, u *userdm.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

// owned lists every table column that references a user.
var owned = []struct {
	model  interface{}
	column string
}{
	{&findingdm.Finding{}, "reported_by_id"},
	{&commentdm.Comment{}, "user_id"},
	{&reportdm.Report{}, "generated_by_id"},
	{&messagedm.Message{}, "user_id"},
	{&attachmentdm.Attachment{}, "uploaded_by_id"},
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range owned {
			var n int64
			if err := tx.Model(o.model).Where(o.column+" = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return internal.ErrUserInUse
			}
		}

		res := tx.Where("id = ?", id).Delete(&userdm.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrUserNotFound
		}
		return nil
	})
}
