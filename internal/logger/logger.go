package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/contextkeys"
)

var (
	levelVar slog.LevelVar

	// L is the base logger.
	L *slog.Logger

	// TG logs Telegram transport events.
	TG *slog.Logger
	// DB logs storage events.
	DB *slog.Logger
	// HTTP logs the webhook endpoint.
	HTTP *slog.Logger
	// Flow logs dispatching and conversation handling.
	Flow *slog.Logger
	// Jobs logs periodic jobs.
	Jobs *slog.Logger
)

func init() {
	setBase(slog.Default())
}

type Options struct {
	Level  string
	Format string
}

// Init installs the process-wide logger writing to stdout.
func Init(opts Options) {
	InitWriter(os.Stdout, opts)
}

func InitWriter(w io.Writer, opts Options) {
	levelVar.Set(parseLevel(opts.Level))
	handlerOpts := &slog.HandlerOptions{Level: &levelVar}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "text", "kv", "pretty":
		h = slog.NewTextHandler(w, handlerOpts)
	default:
		h = slog.NewJSONHandler(w, handlerOpts)
	}

	base := slog.New(h)
	slog.SetDefault(base)
	setBase(base)
}

func setBase(base *slog.Logger) {
	L = base
	TG = L.With("component", "tg")
	DB = L.With("component", "db")
	HTTP = L.With("component", "http")
	Flow = L.With("component", "flow")
	Jobs = L.With("component", "jobs")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// FromContext decorates base with the update and trace ids carried by ctx.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = L
	}
	if ctx == nil {
		return base
	}
	if id, ok := contextkeys.GetUpdateID(ctx); ok {
		base = base.With(slog.Int64("update_id", id))
	}
	if trace, ok := contextkeys.GetTraceID(ctx); ok {
		base = base.With(slog.String("trace_id", trace))
	}
	if mt, ok := contextkeys.GetMessageType(ctx); ok {
		base = base.With(slog.String("message_type", string(mt)))
	}
	return base
}
