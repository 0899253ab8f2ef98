package attachment

import "time"

type Attachment struct {
	ID           int64     `gorm:"primaryKey"`
	FindingID    int64     `gorm:"column:finding_id;not null;index"`
	Filename     string    `gorm:"column:filename;not null"`
	OriginalName string    `gorm:"column:original_name;not null"`
	FilePath     string    `gorm:"column:file_path;not null"`
	FileSize     int64     `gorm:"column:file_size;not null"`
	MimeType     string    `gorm:"column:mime_type;not null"`
	UploadedByID string    `gorm:"column:uploaded_by_id;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Attachment) TableName() string {
	return "attachments"
}
