package migrations

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type chatV1 struct {
	ID        uint           `gorm:"primaryKey"`
	OwnerID   uint           `gorm:"index;not null"`
	Owner     *userV1        `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Prompt    string         `gorm:"type:varchar(255);not null"`
	Response  string         `gorm:"type:text"`
	Model     string         `gorm:"type:varchar(64)"`
	Meta      datatypes.JSON
	CreatedAt time.Time      `gorm:"index"`
}

func (chatV1) TableName() string { return "chats" }

// Migration002Chats creates the chat history table owned by users.
type Migration002Chats struct{}

func (m *Migration002Chats) Version() string {
	return "002_chats"
}

func (m *Migration002Chats) Description() string {
	return "Create chats table referencing users"
}

func (m *Migration002Chats) Up(db *gorm.DB) error {
	if db.Migrator().HasTable(&chatV1{}) {
		return nil
	}
	return db.Migrator().CreateTable(&chatV1{})
}

func (m *Migration002Chats) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("chats")
}
