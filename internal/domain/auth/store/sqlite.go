package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"chat-server-go/internal/domain/auth/model"
	"chat-server-go/internal/platform/storage"
)

type sqlStore struct {
	db *gorm.DB
}

// NewSQL builds a gorm-backed credential store over the users table. It works
// with any dialect the storage package opens.
func NewSQL(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sql store requires database handle")
	}
	return &sqlStore{db: db}, nil
}

func (s *sqlStore) FindByEmail(ctx context.Context, email string) (model.Identity, error) {
	var user storage.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return model.Identity{}, notFoundOr(err)
	}
	return toIdentity(user), nil
}

func (s *sqlStore) FindByID(ctx context.Context, id uint) (model.Identity, error) {
	var user storage.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return model.Identity{}, notFoundOr(err)
	}
	return toIdentity(user), nil
}

func (s *sqlStore) Create(ctx context.Context, identity model.Identity) (model.Identity, error) {
	user := storage.User{
		Email:        identity.Email,
		PasswordHash: identity.PasswordHash,
		IsActive:     identity.IsActive,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&storage.User{}).Where("email = ?", identity.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}
		// Select keeps an explicit false for is_active instead of the column default.
		return tx.Select("Email", "PasswordHash", "IsActive", "CreatedAt", "UpdatedAt").Create(&user).Error
	})
	if err != nil {
		// The unique index still catches a concurrent insert that won the race.
		if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return model.Identity{}, ErrConflict
		}
		return model.Identity{}, err
	}
	return toIdentity(user), nil
}

func (s *sqlStore) List(ctx context.Context, opts model.ListOptions) ([]model.Identity, error) {
	opts = normalizeList(opts)

	q := s.db.WithContext(ctx).Model(&storage.User{})
	if opts.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var users []storage.User
	if err := q.Order("id ASC").Offset(opts.Offset).Limit(opts.Limit).Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]model.Identity, 0, len(users))
	for _, u := range users {
		out = append(out, toIdentity(u))
	}
	return out, nil
}

func (s *sqlStore) Stats(ctx context.Context) (map[string]any, error) {
	var total, active int64
	if err := s.db.WithContext(ctx).Model(&storage.User{}).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&storage.User{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":    "database",
		"dialect": s.db.Dialector.Name(),
		"total":   total,
		"active":  active,
	}, nil
}

func (s *sqlStore) Close(context.Context) error {
	return nil
}

func toIdentity(u storage.User) model.Identity {
	return model.Identity{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
