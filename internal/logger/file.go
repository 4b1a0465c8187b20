package logger

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newFileHandler builds the Tier 2 rotated-file handler. File output is
// always JSON lines so log shippers can parse it regardless of the console
// format. The returned closer flushes and closes the underlying file.
func newFileHandler(cfg *Config) (slog.Handler, io.Closer) {
	writer := &lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: cfg.Level.slogLevel(),
	})

	return handler, writer
}
