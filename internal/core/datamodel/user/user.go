package user

import "time"

type User struct {
	ID              string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	Username        *string   `gorm:"column:username;uniqueIndex"`
	PasswordHash    *string   `gorm:"column:password"`
	Email           string    `gorm:"column:email"`
	FirstName       string    `gorm:"column:first_name"`
	LastName        string    `gorm:"column:last_name"`
	ProfileImageURL string    `gorm:"column:profile_image_url"`
	Role            string    `gorm:"column:role;not null;default:analyst"`
	Status          string    `gorm:"column:status;not null;default:pending"`
	AuthSource      string    `gorm:"column:auth_source;not null;default:local"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
