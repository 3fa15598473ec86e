package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RetentionDays is how long rotated log files are kept.
const RetentionDays = 7

// Config captures logging configuration options.
type Config struct {
	Level    string `yaml:"log_level" mapstructure:"log_level"`
	Dir      string `yaml:"log_dir" mapstructure:"log_dir"`
	Filename string `yaml:"log_file" mapstructure:"log_file"`
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

var tagColors = map[string]string{
	"[Bootstrap]": "\x1b[96m",
	"[HTTP]":      "\x1b[95m",
	"[Auth]":      "\x1b[94m",
	"[Chat]":      "\x1b[92m",
	"[LLM]":       "\x1b[34m",
	"[Storage]":   "\x1b[97m",
}

// consoleHandler renders records as single colored lines.
type consoleHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var b strings.Builder
	if color, ok := tagColor(r.Message); ok {
		fmt.Fprintf(&b, "%s[%s]%s %s%s%s", colorTime, timeStr, colorReset, color, r.Message, colorReset)
	} else {
		levelColor := colorReset
		switch {
		case r.Level >= slog.LevelError:
			levelColor = colorError
		case r.Level >= slog.LevelWarn:
			levelColor = colorWarn
		case r.Level >= slog.LevelInfo:
			levelColor = colorInfo
		default:
			levelColor = colorDebug
		}
		fmt.Fprintf(&b, "%s[%s]%s %s[%s]%s %s", colorTime, timeStr, colorReset, levelColor, r.Level.String(), colorReset, r.Message)
	}

	if r.NumAttrs() > 0 {
		b.WriteString(" {")
		r.Attrs(func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})
		b.WriteString(" }")
	}
	b.WriteString("\n")

	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *consoleHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *consoleHandler) WithGroup(string) slog.Handler { return h }

func tagColor(msg string) (string, bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", false
	}
	end := strings.Index(msg, "]")
	if end < 0 {
		return "", false
	}
	color, ok := tagColors[msg[:end+1]]
	return color, ok
}

// Logger writes JSON lines to a daily rotated file and colored text to the console.
type Logger struct {
	cfg         Config
	level       slog.Level
	jsonLogger  *slog.Logger
	textLogger  *slog.Logger
	file        *os.File
	currentDate string
	mu          sync.RWMutex
	ticker      *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a Logger. An empty Dir disables file output.
func New(cfg Config) (*Logger, error) {
	level := ParseLevel(cfg.Level)
	l := &Logger{
		cfg:         cfg,
		level:       level,
		textLogger:  slog.New(&consoleHandler{writer: os.Stdout, level: level}),
		currentDate: time.Now().Format("2006-01-02"),
		stopCh:      make(chan struct{}),
	}

	if cfg.Dir == "" {
		l.jsonLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return l, nil
	}

	if cfg.Filename == "" {
		cfg.Filename = "server.log"
		l.cfg.Filename = cfg.Filename
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(cfg.Dir, cfg.Filename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = file
	l.jsonLogger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	l.startRotationChecker()
	return l, nil
}

// NewWithWriter builds a console-only logger writing to w. Used by tests.
func NewWithWriter(w io.Writer, level string) *Logger {
	lv := ParseLevel(level)
	return &Logger{
		level:      lv,
		jsonLogger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		textLogger: slog.New(&consoleHandler{writer: w, level: lv}),
		stopCh:     make(chan struct{}),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriter(io.Discard, "error")
}

func (l *Logger) startRotationChecker() {
	l.ticker = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-l.ticker.C:
				l.checkAndRotate(time.Now())
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Logger) checkAndRotate(now time.Time) {
	today := now.Format("2006-01-02")
	if today != l.currentDate {
		l.rotate(today)
		l.cleanOldLogs(now)
	}
}

func (l *Logger) rotate(newDate string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	current := filepath.Join(l.cfg.Dir, l.cfg.Filename)
	base := strings.TrimSuffix(l.cfg.Filename, filepath.Ext(l.cfg.Filename))
	ext := filepath.Ext(l.cfg.Filename)
	archived := filepath.Join(l.cfg.Dir, fmt.Sprintf("%s-%s%s", base, l.currentDate, ext))

	if _, err := os.Stat(current); err == nil {
		if err := os.Rename(current, archived); err != nil {
			l.textLogger.Error("rename log file failed", slog.String("error", err.Error()))
		}
	}

	file, err := os.OpenFile(current, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.textLogger.Error("create log file failed", slog.String("error", err.Error()))
		return
	}
	l.file = file
	l.currentDate = newDate
	l.jsonLogger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: l.level}))
	l.textLogger.Info("log file rotated", slog.String("new_date", newDate))
}

func (l *Logger) cleanOldLogs(now time.Time) {
	entries, err := os.ReadDir(l.cfg.Dir)
	if err != nil {
		l.textLogger.Error("read log dir failed", slog.String("error", err.Error()))
		return
	}

	cutoff := now.AddDate(0, 0, -RetentionDays)
	base := strings.TrimSuffix(l.cfg.Filename, filepath.Ext(l.cfg.Filename))
	ext := filepath.Ext(l.cfg.Filename)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, base+"-") || !strings.HasSuffix(name, ext) {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, base+"-"), ext)
		fileDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil || !fileDate.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(l.cfg.Dir, name)); err != nil {
			l.textLogger.Error("remove old log failed", slog.String("file", name), slog.String("error", err.Error()))
		}
	}
}

// Close stops rotation and closes the log file.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.ticker != nil {
			l.ticker.Stop()
		}
		close(l.stopCh)
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil || level < l.level {
		return
	}

	var attrs []slog.Attr
	if len(args) > 0 && strings.Contains(msg, "%") {
		msg = fmt.Sprintf(msg, args...)
	} else if len(args) > 0 && args[0] != nil {
		if fields, ok := args[0].(map[string]any); ok {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				attrs = append(attrs, slog.Any(k, fields[k]))
			}
		} else {
			attrs = append(attrs, slog.Any("fields", args[0]))
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	ctx := context.Background()
	l.jsonLogger.LogAttrs(ctx, level, msg, attrs...)
	l.textLogger.LogAttrs(ctx, level, msg, attrs...)
}

// Format builds a tagged message, e.g. Format("Auth", "login ok") -> "[Auth] login ok".
func Format(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" || strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

// Debug accepts either printf-style args or a single map of fields.
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

func (l *Logger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

func (l *Logger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *Logger) DebugTag(tag, msg string, args ...any) {
	l.log(slog.LevelDebug, Format(tag, msg), args...)
}

func (l *Logger) InfoTag(tag, msg string, args ...any) {
	l.log(slog.LevelInfo, Format(tag, msg), args...)
}

func (l *Logger) WarnTag(tag, msg string, args ...any) {
	l.log(slog.LevelWarn, Format(tag, msg), args...)
}

func (l *Logger) ErrorTag(tag, msg string, args ...any) {
	l.log(slog.LevelError, Format(tag, msg), args...)
}

// Slog exposes the console logger for structured integrations.
func (l *Logger) Slog() *slog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.textLogger
}
