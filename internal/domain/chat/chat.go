package chat

import (
	"context"
	"time"

	"chat-server-go/internal/domain/llm"
)

const (
	// MaxPromptLength is the longest accepted prompt, in characters.
	MaxPromptLength = 255

	DefaultListLimit = 100
	MaxListLimit     = 100
)

// Chat is one prompt and its response, owned by a user.
type Chat struct {
	ID        uint       `json:"id"`
	OwnerID   uint       `json:"owner_id"`
	Prompt    string     `json:"prompt"`
	Response  string     `json:"response"`
	Model     string     `json:"model,omitempty"`
	Usage     *llm.Usage `json:"usage,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateRequest carries a caller-supplied prompt and optional response.
type CreateRequest struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// ListFilter narrows a history listing. Zero values mean "no constraint".
type ListFilter struct {
	OwnerID uint
	From    time.Time
	To      time.Time
	Content string
	Offset  int
	Limit   int
}

// Repository persists chats.
type Repository interface {
	Create(ctx context.Context, c *Chat) error
	List(ctx context.Context, filter ListFilter) ([]Chat, error)
}
