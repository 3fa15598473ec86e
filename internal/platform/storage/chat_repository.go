package storage

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/gorm"

	"chat-server-go/internal/domain/chat"
	"chat-server-go/internal/domain/llm"
	"chat-server-go/internal/platform/errors"
)

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository returns a gorm-backed chat.Repository.
func NewChatRepository(db *gorm.DB) chat.Repository {
	return &chatRepository{db: db}
}

type chatMeta struct {
	Usage *llm.Usage `json:"usage,omitempty"`
}

func (r *chatRepository) Create(ctx context.Context, c *chat.Chat) error {
	row := &Chat{
		OwnerID:  c.OwnerID,
		Prompt:   c.Prompt,
		Response: c.Response,
		Model:    c.Model,
	}
	if c.Usage != nil {
		meta, err := json.Marshal(chatMeta{Usage: c.Usage})
		if err != nil {
			return errors.Wrap(errors.KindInternal, "chat.create", "failed to encode chat meta", err)
		}
		row.Meta = meta
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "chat.create", "failed to insert chat", err)
	}
	c.ID = row.ID
	c.CreatedAt = row.CreatedAt
	return nil
}

func (r *chatRepository) List(ctx context.Context, f chat.ListFilter) ([]chat.Chat, error) {
	q := r.db.WithContext(ctx).Model(&Chat{}).Where("owner_id = ?", f.OwnerID)
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("created_at <= ?", f.To.UTC())
	}
	if f.Content != "" {
		like := "%" + escapeLike(strings.ToLower(f.Content)) + "%"
		q = q.Where("(LOWER(prompt) LIKE ? ESCAPE '\\' OR LOWER(response) LIKE ? ESCAPE '\\')", like, like)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []Chat
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "chat.list", "failed to list chats", err)
	}

	out := make([]chat.Chat, 0, len(rows))
	for i := range rows {
		out = append(out, fromChatRow(&rows[i]))
	}
	return out, nil
}

func fromChatRow(row *Chat) chat.Chat {
	c := chat.Chat{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Prompt:    row.Prompt,
		Response:  row.Response,
		Model:     row.Model,
		CreatedAt: row.CreatedAt,
	}
	if len(row.Meta) > 0 {
		var meta chatMeta
		if err := json.Unmarshal(row.Meta, &meta); err == nil {
			c.Usage = meta.Usage
		}
	}
	return c
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
