package capture

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

// CapturePanic turns a recovered value into an event with the goroutine
// stack attached.
func CapturePanic(recovered any) Event {
	return Event{
		ErrorType:    classifyRuntimeError(recovered),
		ErrorMessage: fmt.Sprint(recovered),
		StackTrace:   string(debug.Stack()),
	}
}

// Recover is a defer helper: it reports a panic and swallows it.
//
//	defer reporter.Recover()
func (r *Reporter) Recover() {
	if rec := recover(); rec != nil {
		r.Report(CapturePanic(rec))
	}
}

// warnKeywords gate which warnings are worth shipping; Warn is too chatty
// to forward wholesale.
var warnKeywords = []string{"error", "fail", "exception", "critical", "fatal"}

// LogHandler is a slog.Handler that forwards error-level records (and
// error-ish warnings) to the reporter while delegating everything to the
// wrapped handler.
type LogHandler struct {
	inner    slog.Handler
	reporter *Reporter
}

// NewLogHandler wraps inner so that log output doubles as error capture.
func NewLogHandler(inner slog.Handler, r *Reporter) *LogHandler {
	return &LogHandler{inner: inner, reporter: r}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, rec slog.Record) error {
	switch {
	case rec.Level >= slog.LevelError:
		h.forward("console.error", rec)
	case rec.Level >= slog.LevelWarn && isErrorish(rec.Message):
		h.forward("console.warn", rec)
	}
	return h.inner.Handle(ctx, rec)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{inner: h.inner.WithAttrs(attrs), reporter: h.reporter}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{inner: h.inner.WithGroup(name), reporter: h.reporter}
}

func (h *LogHandler) forward(errorType string, rec slog.Record) {
	data := map[string]any{}
	rec.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.String()
		return len(data) < 20
	})
	h.reporter.Report(Event{
		ErrorType:      errorType,
		ErrorMessage:   rec.Message,
		AdditionalData: data,
	})
}

func isErrorish(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range warnKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ResourceCheck builds a resource_error event for an asset that failed to
// load.
func ResourceCheck(url, kind string) Event {
	return Event{
		ErrorType:    "resource_error",
		ErrorMessage: fmt.Sprintf("Failed to load %s: %s", kind, url),
		ErrorSource:  url,
		AdditionalData: map[string]any{
			"resource_kind": kind,
		},
	}
}

const slowLoadThreshold = 10 * time.Second

// PageTiming is a coarse load-time breakdown supplied by the host
// application.
type PageTiming struct {
	PageURL string
	Total   time.Duration
	Network time.Duration
	Render  time.Duration
}

// CheckLoadTime reports a performance event when a page took longer than
// ten seconds to become usable.
func (r *Reporter) CheckLoadTime(t PageTiming) {
	if t.Total <= slowLoadThreshold {
		return
	}
	r.Report(Event{
		ErrorType:    "performance",
		ErrorMessage: fmt.Sprintf("Slow page load: %.1fs", t.Total.Seconds()),
		PageURL:      t.PageURL,
		AdditionalData: map[string]any{
			"total_ms":   t.Total.Milliseconds(),
			"network_ms": t.Network.Milliseconds(),
			"render_ms":  t.Render.Milliseconds(),
		},
	})
}
