package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"chat-server-go/internal/domain/llm"
	"chat-server-go/internal/platform/errors"
	"chat-server-go/internal/platform/logging"
)

// Service validates, sanitizes and stores chats, optionally generating the
// response through a Completer.
type Service struct {
	repo      Repository
	completer llm.Completer
	logger    *logging.Logger
}

// NewService wires a chat service. completer may be nil, in which case Ask
// reports an upstream error.
func NewService(repo Repository, completer llm.Completer, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{repo: repo, completer: completer, logger: logger}
}

// CanGenerate reports whether a completer is configured.
func (s *Service) CanGenerate() bool {
	return s.completer != nil
}

// Create stores a caller-supplied prompt and response.
func (s *Service) Create(ctx context.Context, ownerID uint, req CreateRequest) (Chat, error) {
	const op = "chat.create"

	prompt, err := preparePrompt(op, req.Prompt)
	if err != nil {
		return Chat{}, err
	}

	c := &Chat{
		OwnerID:  ownerID,
		Prompt:   prompt,
		Response: Sanitize(req.Response),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Chat{}, errors.Wrap(errors.KindStorage, op, "failed to store chat", err)
	}
	s.logger.InfoTag("Chat", "stored chat %d for user %d", c.ID, ownerID)
	return *c, nil
}

// Ask generates a response for prompt and stores both. Nothing is stored
// when generation fails.
func (s *Service) Ask(ctx context.Context, ownerID uint, prompt string) (Chat, error) {
	const op = "chat.ask"

	prompt, err := preparePrompt(op, prompt)
	if err != nil {
		return Chat{}, err
	}
	if s.completer == nil {
		return Chat{}, errors.New(errors.KindUpstream, op, "text generation is not configured")
	}

	completion, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return Chat{}, errors.Wrap(errors.KindUpstream, op, "text generation failed", err)
	}

	usage := completion.Usage
	c := &Chat{
		OwnerID:  ownerID,
		Prompt:   prompt,
		Response: completion.Text,
		Model:    completion.Model,
		Usage:    &usage,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Chat{}, errors.Wrap(errors.KindStorage, op, "failed to store chat", err)
	}
	s.logger.InfoTag("Chat", "generated chat %d for user %d using %s", c.ID, ownerID, c.Model)
	return *c, nil
}

// List returns the owner's chats matching filter, oldest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Chat, error) {
	const op = "chat.list"

	if filter.OwnerID == 0 {
		return nil, errors.New(errors.KindValidation, op, "owner is required")
	}
	if filter.Offset < 0 {
		return nil, errors.New(errors.KindValidation, op, "skip must not be negative")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, errors.New(errors.KindValidation, op, "from must not be after to")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	filter.Content = strings.TrimSpace(filter.Content)

	chats, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, op, "failed to list chats", err)
	}
	return chats, nil
}

func preparePrompt(op, raw string) (string, error) {
	prompt := strings.TrimSpace(raw)
	if prompt == "" {
		return "", errors.New(errors.KindValidation, op, "prompt is required")
	}
	if n := utf8.RuneCountInString(prompt); n > MaxPromptLength {
		return "", errors.New(errors.KindValidation, op, fmt.Sprintf("prompt is too long (%d > %d characters)", n, MaxPromptLength))
	}
	prompt = Sanitize(prompt)
	if prompt == "" {
		return "", errors.New(errors.KindValidation, op, "prompt has no text content")
	}
	return prompt, nil
}
