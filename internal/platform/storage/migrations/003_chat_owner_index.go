package migrations

import (
	"gorm.io/gorm"
)

// Migration003ChatOwnerIndex speeds up per-owner history listing ordered by time.
type Migration003ChatOwnerIndex struct{}

func (m *Migration003ChatOwnerIndex) Version() string {
	return "003_chat_owner_index"
}

func (m *Migration003ChatOwnerIndex) Description() string {
	return "Add composite index on chats(owner_id, created_at)"
}

func (m *Migration003ChatOwnerIndex) Up(db *gorm.DB) error {
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_chats_owner_created ON chats(owner_id, created_at)`).Error
}

func (m *Migration003ChatOwnerIndex) Down(db *gorm.DB) error {
	return db.Exec(`DROP INDEX IF EXISTS idx_chats_owner_created`).Error
}
