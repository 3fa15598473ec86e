package webapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server-go/internal/platform/errors"
	"chat-server-go/internal/platform/observability"
	httptransport "chat-server-go/internal/transport/http"
)

// tokenResponse is the OAuth2 password-flow token body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleLogin exchanges form credentials for a bearer token
// @Summary Log in
// @Tags Auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param username formData string true "email"
// @Param password formData string true "password"
// @Success 200 {object} tokenResponse
// @Failure 401 {object} object
// @Router /login [post]
func (s *Service) handleLogin(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		s.metrics.Login(observability.LoginFailure)
		httptransport.RespondAuthFailure(c)
		return
	}

	cred, err := s.users.Login(c.Request.Context(), email, password)
	if err != nil {
		if errors.IsKind(err, errors.KindAuth) {
			s.metrics.Login(observability.LoginFailure)
			httptransport.RespondAuthFailure(c)
			return
		}
		s.respondError(c, err)
		return
	}

	s.metrics.Login(observability.LoginSuccess)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
	})
}
