package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	domainauth "chat-server-go/internal/domain/auth"
	authstore "chat-server-go/internal/domain/auth/store"
	domainchat "chat-server-go/internal/domain/chat"
	domainllm "chat-server-go/internal/domain/llm"
	platformconfig "chat-server-go/internal/platform/config"
	platformerrors "chat-server-go/internal/platform/errors"
	platformlogging "chat-server-go/internal/platform/logging"
	platformobservability "chat-server-go/internal/platform/observability"
	platformstorage "chat-server-go/internal/platform/storage"
	httptransport "chat-server-go/internal/transport/http"
	httpwebapi "chat-server-go/internal/transport/http/webapi"
)

const drainTimeout = 15 * time.Second

// Options selects where configuration comes from.
type Options struct {
	ConfigPath string
	EnvFile    string
	// DotEnv loads .env (or EnvFile) before reading the environment.
	DotEnv bool
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	options               Options
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	metrics               *platformobservability.Metrics
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	authManager           *domainauth.Manager
	completer             domainllm.Completer
	chatService           *domainchat.Service
}

// Run loads configuration, wires dependencies, serves HTTP until ctx is
// cancelled or SIGINT/SIGTERM arrives, then shuts down gracefully.
func Run(ctx context.Context, opts Options) error {
	state := &appState{options: opts}
	defer state.close()

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	if state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.authManager == nil || state.chatService == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"services not initialised",
		)
	}
	logger := state.logger

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}
	logger.InfoTag("Bootstrap", "server started")

	return waitForShutdown(groupCtx, cancel, logger, group)
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("Bootstrap", "init graph")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("Bootstrap", "  %s: %s", step.ID, step.Title)
			continue
		}
		logger.InfoTag("Bootstrap", "  %s: %s (after %v)", step.ID, step.Title, step.DependsOn)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := ctx.Err(); err != nil {
			return platformerrors.Wrap(platformerrors.KindBootstrap, step.ID, "bootstrap cancelled", err)
		}
		if err := step.Execute(ctx, state); err != nil {
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the init steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup metrics and spans",
			DependsOn: []string{"logging:init-provider"},
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Open database and apply migrations",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "auth:init-manager",
			Title:     "Initialise auth manager",
			DependsOn: []string{"storage:init-database"},
			Execute:   initAuthStep,
		},
		{
			ID:        "llm:init-completer",
			Title:     "Initialise text completer",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindConfig,
			Execute:   initCompleterStep,
		},
		{
			ID:        "chat:init-service",
			Title:     "Initialise chat service",
			DependsOn: []string{"storage:init-database", "llm:init-completer"},
			Execute:   initChatStep,
		},
	}
}

// LoadConfig resolves configuration the same way Run does.
func LoadConfig(opts Options) (*platformconfig.Config, string, error) {
	loader := platformconfig.NewLoader().
		WithDotEnv(opts.DotEnv).
		WithConfigFile(opts.ConfigPath).
		WithEnvFile(opts.EnvFile)
	result, err := loader.Load()
	if err != nil {
		return nil, "", err
	}
	return result.Config, result.Path, nil
}

func loadConfigStep(_ context.Context, state *appState) error {
	cfg, path, err := LoadConfig(state.options)
	if err != nil {
		return err
	}
	state.config = cfg
	state.configPath = path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	source := state.configPath
	if source == "" {
		source = "defaults+env"
	}
	logger.InfoTag("Bootstrap", "logging ready [%s] config=%s", state.config.Log.Level, source)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled: state.config.Metrics.Enabled,
		Path:    state.config.Metrics.Path,
	}
	metrics, shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.metrics = metrics
	state.observabilityShutdown = shutdown
	return nil
}

func initDatabaseStep(ctx context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Database)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to open database", err)
	}
	state.db = db

	if err := platformstorage.Ping(ctx, db); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "database unreachable", err)
	}
	applied, err := platformstorage.NewMigrator(db).Apply()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to apply migrations", err)
	}
	for _, version := range applied {
		state.logger.InfoTag("Storage", "applied migration %s", version)
	}
	state.logger.InfoTag("Storage", "database ready [%s]", state.config.Database.Driver)
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	manager, err := newAuthManager(state.config, state.db, state.logger)
	if err != nil {
		return err
	}
	state.authManager = manager
	return nil
}

func newAuthManager(cfg *platformconfig.Config, db *gorm.DB, logger *platformlogging.Logger) (*domainauth.Manager, error) {
	storeCfg := authstore.Config{Driver: cfg.Auth.Store.Type}
	if cfg.Auth.Store.Type == authstore.DriverRedis {
		r := cfg.Auth.Store.Redis
		storeCfg.Redis = &authstore.RedisConfig{
			Addr:     r.Addr,
			Username: r.Username,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		}
	}
	store, err := authstore.New(storeCfg, authstore.Dependencies{DB: db})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "auth:init-manager", "failed to create credential store", err)
	}

	a := cfg.Auth.Hash.Argon2
	hasher, err := domainauth.NewPasswordHasher(domainauth.HasherConfig{
		Algorithm: cfg.Auth.Hash.Algorithm,
		Argon2: domainauth.Argon2Params{
			Time:      a.Time,
			MemoryKiB: a.MemoryKiB,
			Threads:   a.Threads,
			SaltLen:   a.SaltLen,
			KeyLen:    a.KeyLen,
		},
		BcryptCost: cfg.Auth.Hash.BcryptCost,
	})
	if err != nil {
		_ = store.Close(context.Background())
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "auth:init-manager", "invalid password hashing config", err)
	}

	manager, err := domainauth.NewManager(domainauth.Options{
		Store:  store,
		Hasher: hasher,
		Token: domainauth.TokenConfig{
			Secret: cfg.Auth.Secret,
			TTL:    cfg.Auth.TokenTTL(),
			Issuer: cfg.Auth.Issuer,
		},
		Logger: logger,
	})
	if err != nil {
		_ = store.Close(context.Background())
		return nil, err
	}

	logger.InfoTag("Auth", "auth manager ready [store=%s hash=%s ttl=%s]",
		storeCfg.Driver, hasher.Algorithm(), cfg.Auth.TokenTTL())
	return manager, nil
}

func initCompleterStep(_ context.Context, state *appState) error {
	llmCfg := state.config.LLM
	if llmCfg.APIKey == "" {
		state.logger.WarnTag("LLM", "no api key configured, text generation disabled")
		return nil
	}

	completer, err := domainllm.NewOpenAI(domainllm.Config{
		APIKey:      llmCfg.APIKey,
		BaseURL:     llmCfg.BaseURL,
		Model:       llmCfg.ModelName,
		Temperature: llmCfg.Temperature,
		MaxTokens:   llmCfg.MaxTokens,
		Timeout:     llmCfg.Timeout,
	}, state.logger)
	if err != nil {
		return err
	}
	state.completer = completer
	state.logger.InfoTag("LLM", "text completer ready [%s]", llmCfg.ModelName)
	return nil
}

func initChatStep(_ context.Context, state *appState) error {
	state.chatService = domainchat.NewService(
		platformstorage.NewChatRepository(state.db),
		state.completer,
		state.logger,
	)
	return nil
}

// close releases whatever the init steps managed to create, in reverse order.
func (s *appState) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.authManager != nil {
		if err := s.authManager.Close(ctx); err != nil {
			s.logger.ErrorTag("Auth", "auth manager did not close cleanly: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			s.logger.ErrorTag("Storage", "database did not close cleanly: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		if err := s.observabilityShutdown(ctx); err != nil {
			s.logger.WarnTag("Bootstrap", "observability did not shut down cleanly: %v", err)
		}
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

// buildHandler assembles the router and mounts every route.
func buildHandler(ctx context.Context, state *appState) (*gin.Engine, error) {
	cfg := state.config
	router, err := httptransport.Build(httptransport.Options{
		Config:         cfg,
		Logger:         state.logger,
		Metrics:        state.metrics,
		AuthMiddleware: httptransport.BearerAuth(state.authManager, state.logger, state.metrics),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	router.Engine.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found", nil)
	})

	db := state.db
	api, err := httpwebapi.NewService(httpwebapi.Options{
		Users:        state.authManager,
		Chats:        state.chatService,
		Health:       func(ctx context.Context) error { return platformstorage.Ping(ctx, db) },
		LoginLimiter: httptransport.NewLoginLimiter(cfg.Auth.LoginRate.PerSecond, cfg.Auth.LoginRate.Burst),
		Metrics:      state.metrics,
		Logger:       state.logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:new-service", "failed to create webapi service", err)
	}
	if err := api.Register(ctx, router.API, router.Secured); err != nil {
		return nil, err
	}
	return router.Engine, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	handler, err := buildHandler(groupCtx, state)
	if err != nil {
		return nil, err
	}

	cfg := state.config
	logger := state.logger
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "failed to listen", err)
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorTag("HTTP", "http server shutdown failed: %v", err)
			return err
		}
		logger.InfoTag("HTTP", "http server stopped")
		return nil
	})

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "http server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("Bootstrap", "shutting down: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag("Bootstrap", "all services stopped")
	case <-time.After(drainTimeout):
		logger.ErrorTag("Bootstrap", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}
