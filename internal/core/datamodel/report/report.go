package report

import "time"

type Report struct {
	ID            int64     `gorm:"primaryKey"`
	Title         string    `gorm:"column:title;not null"`
	Description   string    `gorm:"column:description;type:text"`
	Findings      []int64   `gorm:"column:findings;serializer:json"`
	GeneratedByID string    `gorm:"column:generated_by_id;not null"`
	Format        string    `gorm:"column:format;not null;default:pdf"`
	Filename      string    `gorm:"column:filename"`
	FilePath      string    `gorm:"column:file_path"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Report) TableName() string {
	return "reports"
}
