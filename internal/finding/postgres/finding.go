package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/redteam-collab/internal"
	attachmentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/attachment"
	commentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/comment"
	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
	"github.com/frahmantamala/redteam-collab/internal/finding"
	"gorm.io/gorm"
)

type FindingRepository struct {
	db *gorm.DB
}

func NewFindingRepository(db *gorm.DB) finding.Repository {
	return &FindingRepository{db: db}
}

// List returns newest first.
func (r *FindingRepository) List(ctx context.Context, filter finding.Filter) ([]*findingdm.Finding, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if len(filter.Severities) > 0 {
		q = q.Where("severity IN ?", filter.Severities)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}

	var rows []*findingdm.Finding
	err := q.Find(&rows).Error
	return rows, err
}

func (r *FindingRepository) GetByID(ctx context.Context, id int64) (*findingdm.Finding, error) {
	var f findingdm.Finding
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrFindingNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *FindingRepository) GetByIDs(ctx context.Context, ids []int64) ([]*findingdm.Finding, error) {
	if len(ids) == 0 {
		return []*findingdm.Finding{}, nil
	}

	var rows []*findingdm.Finding
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[int64]*findingdm.Finding, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]*findingdm.Finding, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (r *FindingRepository) Create(ctx context.Context, f *findingdm.Finding) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *FindingRepository) Update(ctx context.Context, f *findingdm.Finding) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *FindingRepository) Delete(ctx context.Context, id int64) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&attachmentdm.Attachment{}).Where("finding_id = ?", id).Pluck("file_path", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("finding_id = ?", id).Delete(&attachmentdm.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("finding_id = ?", id).Delete(&commentdm.Comment{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&findingdm.Finding{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrFindingNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
