package message

import "time"

type Message struct {
	ID        int64     `gorm:"primaryKey"`
	Content   string    `gorm:"column:content;type:text;not null"`
	UserID    string    `gorm:"column:user_id;not null"`
	Channel   string    `gorm:"column:channel;not null;default:general;index"`
	ReplyTo   *int64    `gorm:"column:reply_to"`
	Edited    bool      `gorm:"column:edited;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Message) TableName() string {
	return "messages"
}
