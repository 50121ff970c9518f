// Package logger provides levelled logging for dirsync, backed by zerolog.
// Output goes to stderr so command output on stdout stays clean. The
// --verbose flag lowers the level to debug.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type loggerKey struct{}

var (
	mu         sync.RWMutex
	verbose    bool
	jsonFormat bool
	level                = zerolog.WarnLevel
	output     io.Writer = os.Stderr
	base       zerolog.Logger
)

func init() {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	rebuild()
}

// rebuild must be called with mu held for writing, or from init.
func rebuild() {
	w := output
	if !jsonFormat {
		w = zerolog.ConsoleWriter{
			Out:        output,
			NoColor:    !isTerminal(output),
			TimeFormat: time.TimeOnly,
		}
	}

	effective := level
	if verbose {
		effective = zerolog.DebugLevel
	}
	base = zerolog.New(w).With().Timestamp().Logger().Level(effective)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetVerbose enables or disables verbose (debug) logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// SetJSON switches between console and raw JSON output.
func SetJSON(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonFormat = enabled
	rebuild()
}

// SetLevel sets the minimum level ("debug", "info", "warn", "error").
// Verbose mode still forces debug.
func SetLevel(name string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	mu.Lock()
	defer mu.Unlock()
	level = lvl
	rebuild()
	return nil
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Ctx returns the logger attached to ctx, or the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok {
			return l
		}
	}
	l := Logger()
	return &l
}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Debug logs a formatted debug message.
func Debug(format string, args ...any) {
	l := Logger()
	l.Debug().Msgf(format, args...)
}

// Section logs a section marker at debug level.
func Section(name string) {
	l := Logger()
	l.Debug().Str("section", name).Msg("===")
}

// Info logs a formatted informational message.
func Info(format string, args ...any) {
	l := Logger()
	l.Info().Msgf(format, args...)
}

// Warn logs a formatted warning.
func Warn(format string, args ...any) {
	l := Logger()
	l.Warn().Msgf(format, args...)
}

// Error logs a formatted error.
func Error(format string, args ...any) {
	l := Logger()
	l.Error().Msgf(format, args...)
}
