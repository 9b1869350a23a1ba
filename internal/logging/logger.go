// Package logging provides structured JSON logging with command ID propagation.
// It wraps Go's built-in log/slog with bot-specific helpers: a per-command id
// injected when an update is dispatched and extracted from context, so every
// log line produced while handling one chat command can be correlated.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
)

type contextKey string

const commandIDKey contextKey = "command_id"

// Logger is the package-level structured logger. Callers should prefer
// FromContext(ctx) to automatically attach the command id.
var Logger *slog.Logger

func init() {
	Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// Setup (re-)initialises the package logger. level is one of debug/info/warn/error
// (default info). format is "json" (default) or "text".
func Setup(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// NewCommandID generates a random 16-byte hex command id.
func NewCommandID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithCommandID stores a command id in the context.
func WithCommandID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, commandIDKey, id)
}

// CommandIDFromContext retrieves the command id stored in the context.
func CommandIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(commandIDKey).(string)
	return v
}

// FromContext returns a *slog.Logger pre-annotated with the command_id from ctx.
func FromContext(ctx context.Context) *slog.Logger {
	if id := CommandIDFromContext(ctx); id != "" {
		return Logger.With("command_id", id)
	}
	return Logger
}

// Middleware injects a command id into every request context and echoes it in
// the X-Request-ID response header. Uses the incoming X-Request-ID header if
// present, otherwise generates a new one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = NewCommandID()
		}
		ctx := WithCommandID(r.Context(), id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
