// Package observability holds the logging, tracing and metrics plumbing shared
// by the ledgerask binaries.
package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/ledgerask/ledgerask/internal/config"
)

// maxLoggedText bounds free-text attributes such as questions, raw completions
// and generated queries.
const maxLoggedText = 512

var clippedKeys = map[string]bool{
	"question": true,
	"raw":      true,
	"sql":      true,
}

type traceKey struct{}

// NewLogger builds the process logger. Records carry the service name and
// profile, and records logged with a context also carry its trace id.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{
		Level:       cfg.Observability.LogLevel,
		ReplaceAttr: clipAttr,
	}
	var base slog.Handler = slog.NewTextHandler(writer, opts)
	if cfg.Observability.LogJSON {
		base = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(traceHandler{next: base}).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(traceKey{}).(string)
	return traceID
}

type traceHandler struct {
	next slog.Handler
}

func (h traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h traceHandler) Handle(ctx context.Context, record slog.Record) error {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		record.AddAttrs(slog.String("trace_id", traceID))
	}
	return h.next.Handle(ctx, record)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{next: h.next.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{next: h.next.WithGroup(name)}
}

func clipAttr(_ []string, attr slog.Attr) slog.Attr {
	if !clippedKeys[attr.Key] || attr.Value.Kind() != slog.KindString {
		return attr
	}
	text := attr.Value.String()
	if len(text) <= maxLoggedText {
		return attr
	}
	return slog.String(attr.Key, text[:maxLoggedText]+"...")
}
