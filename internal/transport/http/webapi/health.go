package webapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httptransport "chat-server-go/internal/transport/http"
)

const healthTimeout = 2 * time.Second

func (s *Service) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.WarnTag("HTTP", "health check failed: %v", err)
			httptransport.RespondError(c, http.StatusServiceUnavailable, "storage unavailable", gin.H{"status": "degraded"})
			return
		}
	}
	s.respondSuccess(c, http.StatusOK, gin.H{"status": "ok"}, "")
}

func (s *Service) respondSuccess(c *gin.Context, status int, data interface{}, message string) {
	httptransport.RespondSuccess(c, status, data, message)
}
