package webapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chat-server-go/internal/domain/chat"
	"chat-server-go/internal/platform/errors"
)

type createChatRequest struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

// handleCreateChat stores a prompt/response pair supplied by the caller
// @Summary Store a chat
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} chat.Chat
// @Failure 403 {object} object
// @Router /users/{id}/chat [post]
func (s *Service) handleCreateChat(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	owner, err := userID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if owner != caller.ID {
		s.respondError(c, errors.New(errors.KindForbidden, "webapi.createChat", "cannot create chats for another user"))
		return
	}

	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.Wrap(errors.KindValidation, "webapi.createChat", "invalid JSON body", err))
		return
	}

	created, err := s.chats.Create(c.Request.Context(), owner, chat.CreateRequest{
		Prompt:   req.Prompt,
		Response: req.Response,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondSuccess(c, http.StatusCreated, created, "chat created")
}

// handleAsk generates a response for the prompt and stores both
// @Summary Ask
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param prompt query string false "prompt, or JSON body {prompt}"
// @Success 200 {object} chat.Chat
// @Router /chat [post]
func (s *Service) handleAsk(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	prompt, present := c.GetQuery("prompt")
	if !present && c.Request.ContentLength != 0 {
		var req askRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, errors.Wrap(errors.KindValidation, "webapi.ask", "invalid JSON body", err))
			return
		}
		prompt = req.Prompt
	}

	answered, err := s.chats.Ask(c.Request.Context(), caller.ID, prompt)
	switch {
	case err == nil:
		s.metrics.Completion(true)
	case errors.IsKind(err, errors.KindUpstream):
		s.metrics.Completion(false)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondSuccess(c, http.StatusOK, answered, "")
}

func (s *Service) handleListChats(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	offset, limit, err := pagination(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	from, err := parseTimeParam(c.Query("from"))
	if err != nil {
		s.respondError(c, errors.Wrap(errors.KindValidation, "webapi.listChats", "from must be RFC 3339 or YYYY-MM-DD", err))
		return
	}
	to, err := parseTimeParam(c.Query("to"))
	if err != nil {
		s.respondError(c, errors.Wrap(errors.KindValidation, "webapi.listChats", "to must be RFC 3339 or YYYY-MM-DD", err))
		return
	}

	chats, err := s.chats.List(c.Request.Context(), chat.ListFilter{
		OwnerID: caller.ID,
		From:    from,
		To:      to,
		Content: c.Query("content"),
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondSuccess(c, http.StatusOK, chats, "")
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}
