package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// newConsoleHandler builds the Tier 1 console handler.
// JSON format uses the stock slog JSON handler; text format uses the
// colorHandler below so level tags stand out in a terminal.
func newConsoleHandler(cfg *Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	if cfg.Format == FormatJSON {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	if cfg.Console.Color {
		return newColorHandler(os.Stdout, cfg.Level.slogLevel())
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

var (
	debugTag = color.New(color.FgCyan).Sprint("DEBUG")
	infoTag  = color.New(color.FgGreen).Sprint("INFO")
	warnTag  = color.New(color.FgYellow).Sprint("WARN")
	errorTag = color.New(color.FgRed).Sprint("ERROR")
)

// colorHandler is a slog.Handler that writes human-readable lines with
// colored level tags. Groups are not used anywhere in this codebase, so
// WithGroup is a no-op.
type colorHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func newColorHandler(w io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(levelTag(r.Level))
	b.WriteString(" ")
	b.WriteString(r.Message)

	for _, attr := range h.attrs {
		writeAttr(&b, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, attr)
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	combined = append(combined, h.attrs...)
	combined = append(combined, attrs...)
	return &colorHandler{
		mu:    h.mu,
		w:     h.w,
		level: h.level,
		attrs: combined,
	}
}

func (h *colorHandler) WithGroup(string) slog.Handler {
	return h
}

func writeAttr(b *strings.Builder, attr slog.Attr) {
	b.WriteString(" ")
	b.WriteString(attr.Key)
	b.WriteString("=")
	b.WriteString(fmt.Sprint(attr.Value.Any()))
}

func levelTag(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return debugTag
	case level < slog.LevelWarn:
		return infoTag
	case level < slog.LevelError:
		return warnTag
	default:
		return errorTag
	}
}
