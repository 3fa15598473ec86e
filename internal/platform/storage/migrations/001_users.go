package migrations

import (
	"time"

	"gorm.io/gorm"
)

// userV1 is the users table as first shipped. Later model changes must not
// alter it; add a new migration instead.
type userV1 struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	IsActive     bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userV1) TableName() string { return "users" }

// Migration001Users creates the identity table.
type Migration001Users struct{}

func (m *Migration001Users) Version() string {
	return "001_users"
}

func (m *Migration001Users) Description() string {
	return "Create users table with unique email"
}

func (m *Migration001Users) Up(db *gorm.DB) error {
	if db.Migrator().HasTable(&userV1{}) {
		return nil
	}
	return db.Migrator().CreateTable(&userV1{})
}

func (m *Migration001Users) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("users")
}
