package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
	Path    string
}

// ShutdownFunc allows callers to tear down any observability exporters.
type ShutdownFunc func(context.Context) error

var (
	loggerMu             sync.RWMutex
	instrumentationLog   *slog.Logger
	instrumentationState Config
)

func currentLogger() (*slog.Logger, Config) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return instrumentationLog, instrumentationState
}

// Setup installs the span logger and builds the metric registry. The
// returned Metrics is nil when metrics are disabled; all its methods accept
// a nil receiver.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Metrics, ShutdownFunc, error) {
	loggerMu.Lock()
	instrumentationLog = logger
	instrumentationState = cfg
	loggerMu.Unlock()

	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		if logger != nil {
			logger.InfoContext(ctx, "[OBSERVABILITY][SETUP] metrics disabled")
		}
		return nil, noop, nil
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, noop, err
	}
	if logger != nil {
		logger.InfoContext(ctx, "[OBSERVABILITY][SETUP] metrics enabled", slog.String("path", cfg.Path))
	}
	return metrics, func(context.Context) error {
		loggerMu.Lock()
		instrumentationLog = nil
		loggerMu.Unlock()
		return nil
	}, nil
}
