// Package logger provides the structured logger used across the service.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with a few domain helpers.
type Logger struct {
	*slog.Logger
}

var defaultLogger *Logger

// New builds a logger writing to stdout.  Level comes from LOG_LEVEL
// (debug, info, warn, error; default info).  APP_ENV=dev selects the
// human-readable text handler, anything else JSON.
func New() *Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV") == "dev")
}

// NewWithWriter is New with explicit output, level and format.
func NewWithWriter(w io.Writer, level string, text bool) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if text {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return &Logger{slog.New(h)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// WithFields returns a logger carrying the given key/value pairs.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{l.Logger.With(args...)}
}

// WithRequestID returns a logger tagged with the request id.
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{l.Logger.With(slog.String("request_id", id))}
}

// WithError returns a logger carrying err.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{l.Logger.With("error", err.Error())}
}

// Domain helpers

func (l *Logger) LogScreeningScheduled(screeningID, hallID, movieID uint64, startsAt time.Time) {
	l.Info("screening scheduled",
		"screening_id", screeningID, "hall_id", hallID, "movie_id", movieID,
		"starts_at", startsAt.UTC().Format(time.RFC3339))
}

func (l *Logger) LogScheduleConflict(hallID uint64, requested time.Time, conflictID uint64, suggestions int) {
	l.Info("schedule conflict",
		"hall_id", hallID, "requested", requested.UTC().Format(time.RFC3339),
		"conflicting_screening_id", conflictID, "suggestions", suggestions)
}

func (l *Logger) LogHoldCreated(screeningID, userID uint64, seats int, expiresAt time.Time) {
	l.Info("seats held",
		"screening_id", screeningID, "user_id", userID, "seats", seats,
		"expires_at", expiresAt.UTC().Format(time.RFC3339))
}

func (l *Logger) LogSaleConfirmed(orderToken string, screeningID uint64, tickets int, amountCents int64) {
	l.Info("sale confirmed",
		"order_token", orderToken, "screening_id", screeningID,
		"tickets", tickets, "amount_cents", amountCents)
}

func (l *Logger) LogSweep(expired int64, took time.Duration) {
	l.Info("expired holds swept", "expired", expired, "took_ms", took.Milliseconds())
}

// GetDefault returns the process-wide logger, creating it on first use.
func GetDefault() *Logger {
	if defaultLogger == nil {
		defaultLogger = New()
	}
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultLogger = l
	slog.SetDefault(l.Logger)
}
