package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	platformerrors "chat-server-go/internal/platform/errors"
	"chat-server-go/internal/platform/logging"
)

// APIResponse is the envelope every non-login endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// AuthFailureDetail is the one body returned for every credential or token failure.
const AuthFailureDetail = "Could not validate credentials"

const (
	msgInternal       = "internal server error"
	msgUpstreamFailed = "text generation failed"
)

// RespondSuccess writes a success envelope.
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondError writes a failure envelope.
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondAuthFailure writes the uniform 401 and aborts the chain.
func RespondAuthFailure(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": AuthFailureDetail})
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind platformerrors.Kind) int {
	switch kind {
	case platformerrors.KindValidation:
		return http.StatusBadRequest
	case platformerrors.KindConflict:
		return http.StatusConflict
	case platformerrors.KindNotFound:
		return http.StatusNotFound
	case platformerrors.KindForbidden:
		return http.StatusForbidden
	case platformerrors.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError translates a typed error into a response. Causes of
// server-side failures are logged and never sent to the client.
func RespondDomainError(c *gin.Context, logger *logging.Logger, err error) {
	kind := platformerrors.KindOf(err)
	status := StatusFor(kind)

	switch {
	case kind == platformerrors.KindAuth:
		RespondAuthFailure(c)
		return
	case kind == platformerrors.KindUpstream:
		logger.ErrorTag("HTTP", "%s %s: %v", c.Request.Method, c.FullPath(), err)
		RespondError(c, status, msgUpstreamFailed, nil)
		return
	case status >= http.StatusInternalServerError:
		logger.ErrorTag("HTTP", "%s %s: %v", c.Request.Method, c.FullPath(), err)
		RespondError(c, status, msgInternal, nil)
		return
	}

	message := platformerrors.MessageOf(err)
	if message == "" {
		message = http.StatusText(status)
	}
	RespondError(c, status, message, gin.H{"error": message})
}
