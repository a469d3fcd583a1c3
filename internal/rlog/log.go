package rlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured by Init. Until Init is
// called it defaults to JSON logging to stdout with no level filter, so packages
// that log during init-time registration never see a nil logger.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Level is a logging verbosity level accepted by Init.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init (re)configures the global logger. Safe to call once at process
// startup; rodengine's own packages never call it themselves, leaving the
// choice of level/format to the embedding program (e.g. cmd/rodb-demo).
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: output}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with the given component
// name, e.g. "txn", "snapshot", "recovery", "handlers".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTable returns a child logger additionally tagged with a table name,
// for per-table transaction/storage logging.
func WithTable(component, table string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("table", table).Logger()
}
