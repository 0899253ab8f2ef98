package comment

import "time"

type Comment struct {
	ID        int64     `gorm:"primaryKey"`
	FindingID int64     `gorm:"column:finding_id;not null;index"`
	UserID    string    `gorm:"column:user_id;not null"`
	Content   string    `gorm:"column:content;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Comment) TableName() string {
	return "comments"
}
