package storage

import (
	"time"

	"gorm.io/datatypes"
)

// User is the persisted identity row.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	IsActive     bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string {
	return "users"
}

// Chat is one stored prompt/response pair.
type Chat struct {
	ID        uint           `gorm:"primaryKey"`
	OwnerID   uint           `gorm:"index;not null"`
	Prompt    string         `gorm:"type:varchar(255);not null"`
	Response  string         `gorm:"type:text"`
	Model     string         `gorm:"type:varchar(64)"`
	Meta      datatypes.JSON
	CreatedAt time.Time      `gorm:"index"`
}

func (Chat) TableName() string {
	return "chats"
}
