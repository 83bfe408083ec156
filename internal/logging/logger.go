package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Logger is a thin wrapper over slog that adds field helpers
type Logger struct {
	*slog.Logger
}

// NewLogger creates a text logger at debug level in development and a JSON
// logger at info level otherwise. Output goes to stdout plus any extra writers.
func NewLogger(isDevelopment bool, extra ...io.Writer) *Logger {
	var out io.Writer = os.Stdout
	if len(extra) > 0 {
		out = io.MultiWriter(append([]io.Writer{os.Stdout}, extra...)...)
	}

	var handler slog.Handler
	if isDevelopment {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	return &Logger{Logger: slog.New(handler)}
}

// New wraps an existing slog logger
func New(l *slog.Logger) *Logger {
	return &Logger{Logger: l}
}

// Discard returns a logger that drops everything, handy in tests
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithFields returns a child logger carrying the given fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

// With returns a child logger carrying the given key-value pairs
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// NewRotatingFile opens a daily-rotated log file at path, keeping maxAgeDays of history.
// path always links to the current file.
func NewRotatingFile(path string, maxAgeDays int) (io.WriteCloser, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = 7
	}

	w, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithMaxAge(time.Duration(maxAgeDays)*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("open rotating log %s: %w", path, err)
	}

	return w, nil
}
