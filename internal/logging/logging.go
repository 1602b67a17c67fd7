// Package logging configures the zerolog global logger for phonectl.
// Logs always go to stderr so command output on stdout stays parseable.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Config controls logger initialization.
type Config struct {
	Format    string // "json", "console", or "auto"
	Level     string // "debug", "info", "warn", "error"
	Component string // optional component name
	// Output overrides stderr; auto format then always picks JSON.
	Output io.Writer
}

var (
	mu         sync.RWMutex
	baseLogger zerolog.Logger
	baseWriter io.Writer = os.Stderr

	defaultTimeFmt = time.RFC3339
)

var isTerminalFn = term.IsTerminal

func init() {
	baseLogger = zerolog.New(baseWriter).With().Timestamp().Logger()
	log.Logger = baseLogger
}

// Init configures zerolog globals and establishes the package baseline logger.
func Init(cfg Config) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = defaultTimeFmt
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	writer := cfg.Output
	if writer == nil {
		writer = selectWriter(cfg.Format, os.Stderr)
	} else if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		writer = newConsoleWriter(writer)
	}
	component := strings.TrimSpace(cfg.Component)

	contextBuilder := zerolog.New(writer).With().Timestamp()
	if component != "" {
		contextBuilder = contextBuilder.Str("component", component)
	}

	baseLogger = contextBuilder.Logger()
	baseWriter = writer
	log.Logger = baseLogger
	return baseLogger
}

// NewRunID returns a sortable identifier for one invocation.
func NewRunID() string {
	return ulid.Make().String()
}

// WithRunID tags every subsequent global log event with runID.
func WithRunID(runID string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	log.Logger = baseLogger.With().Str("run_id", runID).Logger()
	return log.Logger
}

// ValidLevel reports whether level is one Init understands.
func ValidLevel(level string) bool {
	_, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

var levels = map[string]zerolog.Level{
	"":         zerolog.InfoLevel,
	"info":     zerolog.InfoLevel,
	"debug":    zerolog.DebugLevel,
	"trace":    zerolog.TraceLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"disabled": zerolog.Disabled,
}

func parseLevel(level string) zerolog.Level {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if l, ok := levels[normalized]; ok {
		return l
	}
	fmt.Fprintf(os.Stderr, "logging: invalid level %q; using %q\n", normalized, "info")
	return zerolog.InfoLevel
}

func selectWriter(format string, out *os.File) io.Writer {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "console":
		return newConsoleWriter(out)
	case "json":
		return out
	case "auto", "":
		if isTerminal(out) {
			return newConsoleWriter(out)
		}
		return out
	default:
		fmt.Fprintf(os.Stderr, "logging: invalid format %q; using %q\n", format, "json")
		return out
	}
}

func newConsoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: defaultTimeFmt,
	}
}

func isTerminal(file *os.File) bool {
	if file == nil {
		return false
	}
	return isTerminalFn(int(file.Fd()))
}
