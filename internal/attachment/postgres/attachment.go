package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/attachment"
	attachmentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/attachment"
	"gorm.io/gorm"
)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) attachment.Repository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) ListByFinding(ctx context.Context, findingID int64) ([]*attachmentdm.Attachment, error) {
	var rows []*attachmentdm.Attachment
	err := r.db.WithContext(ctx).
		Where("finding_id = ?", findingID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id int64) (*attachmentdm.Attachment, error) {
	var a attachmentdm.Attachment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAttachmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, a *attachmentdm.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&attachmentdm.Attachment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrAttachmentNotFound
	}
	return nil
}
