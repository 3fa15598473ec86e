package webapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-server-go/internal/domain/auth/model"
	"chat-server-go/internal/platform/errors"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleCreateUser registers a new account
// @Summary Register
// @Tags Users
// @Accept json
// @Produce json
// @Success 201 {object} model.Identity
// @Failure 400 {object} object
// @Failure 409 {object} object
// @Router /users [post]
func (s *Service) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.Wrap(errors.KindValidation, "webapi.createUser", "invalid JSON body", err))
		return
	}

	identity, err := s.users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondSuccess(c, http.StatusCreated, identity, "user created")
}

func (s *Service) handleListUsers(c *gin.Context) {
	offset, limit, err := pagination(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	users, err := s.users.List(c.Request.Context(), model.ListOptions{
		ActiveOnly: true,
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondSuccess(c, http.StatusOK, users, "")
}

func (s *Service) handleGetUser(c *gin.Context) {
	id, err := userID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	identity, err := s.users.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondSuccess(c, http.StatusOK, identity, "")
}

func userID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New(errors.KindValidation, "webapi.userID", "invalid user id")
	}
	return uint(id), nil
}
