package httptransport

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chat-server-go/internal/platform/config"
	"chat-server-go/internal/platform/logging"
	"chat-server-go/internal/platform/observability"
)

// Options configures the HTTP router builder.
type Options struct {
	Config         *config.Config
	Logger         *logging.Logger
	Metrics        *observability.Metrics
	AuthMiddleware gin.HandlerFunc
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine  *gin.Engine
	API     *gin.RouterGroup
	Secured *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with request IDs, logging,
// recovery, CORS and metrics middlewares.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	if strings.EqualFold(opts.Config.Log.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(requestIDMiddleware())
	engine.Use(loggingMiddleware(logger))
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.ErrorTag("HTTP", "panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		RespondError(c, http.StatusInternalServerError, msgInternal, nil)
		c.Abort()
	}))
	engine.Use(observabilityMiddleware(opts.Metrics))

	if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("configure trusted proxies: %w", err)
	}

	engine.Use(cors.New(corsConfig(opts.Config.Server.AllowOrigins)))

	if opts.Metrics != nil {
		path := opts.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(opts.Metrics.Handler()))
	}

	api := engine.Group("")
	var secured *gin.RouterGroup
	if opts.AuthMiddleware != nil {
		secured = api.Group("")
		secured.Use(opts.AuthMiddleware)
	}

	return &Router{
		Engine:  engine,
		API:     api,
		Secured: secured,
	}, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			RequestIDHeader,
		},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader, "WWW-Authenticate"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		logger.InfoTag(
			"HTTP",
			"%s %s -> %d (%s) id=%s",
			c.Request.Method,
			c.Request.URL.Path,
			status,
			duration,
			observability.RequestID(c.Request.Context()),
		)
	}
}

func observabilityMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		done := metrics.RequestStarted()
		end := observability.StartSpan(c.Request.Context(), "http.server", path)

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		done()

		var spanErr error
		if len(c.Errors) > 0 {
			spanErr = c.Errors.Last().Err
		} else if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("status %d", status)
		}
		end(spanErr)

		metrics.ObserveRequest(c.Request.Method, path, c.Writer.Status(), duration)
	}
}
