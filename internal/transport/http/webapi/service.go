package webapi

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-server-go/internal/domain/auth"
	"chat-server-go/internal/domain/auth/model"
	"chat-server-go/internal/domain/chat"
	"chat-server-go/internal/platform/errors"
	"chat-server-go/internal/platform/logging"
	"chat-server-go/internal/platform/observability"
	httptransport "chat-server-go/internal/transport/http"
)

// Users is the account surface the handlers need. *auth.Manager satisfies it.
type Users interface {
	Register(ctx context.Context, email, password string) (model.Identity, error)
	Login(ctx context.Context, email, password string) (auth.Credential, error)
	Get(ctx context.Context, id uint) (model.Identity, error)
	List(ctx context.Context, opts model.ListOptions) ([]model.Identity, error)
}

// Chats is the chat surface the handlers need. *chat.Service satisfies it.
type Chats interface {
	Create(ctx context.Context, ownerID uint, req chat.CreateRequest) (chat.Chat, error)
	Ask(ctx context.Context, ownerID uint, prompt string) (chat.Chat, error)
	List(ctx context.Context, filter chat.ListFilter) ([]chat.Chat, error)
}

// Pinger reports storage liveness.
type Pinger func(ctx context.Context) error

// Options holds the Service dependencies.
type Options struct {
	Users        Users
	Chats        Chats
	Health       Pinger
	LoginLimiter *httptransport.LoginLimiter
	Metrics      *observability.Metrics
	Logger       *logging.Logger
}

// Service is the HTTP transport for accounts, sessions and chats.
type Service struct {
	users   Users
	chats   Chats
	health  Pinger
	limiter *httptransport.LoginLimiter
	metrics *observability.Metrics
	logger  *logging.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Users == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "user service is required")
	}
	if opts.Chats == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "chat service is required")
	}
	if opts.Logger == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "logger is required")
	}

	return &Service{
		users:   opts.Users,
		chats:   opts.Chats,
		health:  opts.Health,
		limiter: opts.LoginLimiter,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

// Register mounts public routes on router and authenticated ones on secured.
func (s *Service) Register(ctx context.Context, router, secured *gin.RouterGroup) error {
	if router == nil || secured == nil {
		return errors.New(errors.KindConfig, "webapi.register", "router groups are required")
	}

	router.GET("/healthz", s.handleHealth)
	router.POST("/login", s.limiter.Middleware(s.metrics), s.handleLogin)
	router.POST("/users", s.handleCreateUser)

	secured.GET("/users", s.handleListUsers)
	secured.GET("/users/:id", s.handleGetUser)
	secured.POST("/users/:id/chat", s.handleCreateChat)
	secured.POST("/chat", s.handleAsk)
	secured.GET("/chat", s.handleListChats)

	s.logger.InfoTag("HTTP", "api routes registered")
	return nil
}

func (s *Service) respondError(c *gin.Context, err error) {
	httptransport.RespondDomainError(c, s.logger, err)
}

func (s *Service) caller(c *gin.Context) (model.Identity, bool) {
	identity, ok := httptransport.IdentityFrom(c)
	if !ok {
		httptransport.RespondAuthFailure(c)
	}
	return identity, ok
}

// pagination reads skip and limit; absent values are zero and left to the
// domain defaults.
func pagination(c *gin.Context) (offset, limit int, err error) {
	if raw := c.Query("skip"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New(errors.KindValidation, "webapi.pagination", "skip must be a non-negative integer")
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, errors.New(errors.KindValidation, "webapi.pagination", "limit must be a non-negative integer")
		}
	}
	return offset, limit, nil
}
