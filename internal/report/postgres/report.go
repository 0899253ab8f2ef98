package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/redteam-collab/internal"
	reportdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/report"
	"github.com/frahmantamala/redteam-collab/internal/report"
	"gorm.io/gorm"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) report.Repository {
	return &ReportRepository{db: db}
}

// List is newest first.
func (r *ReportRepository) List(ctx context.Context) ([]*reportdm.Report, error) {
	var rows []*reportdm.Report
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*reportdm.Report, error) {
	var rep reportdm.Report
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrReportNotFound
		}
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepository) Create(ctx context.Context, rep *reportdm.Report) error {
	return r.db.WithContext(ctx).Create(rep).Error
}

func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&reportdm.Report{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrReportNotFound
	}
	return nil
}
