package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field, rooted at
// the global Logger.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithJobID chains a job_id field onto base, so a subsystem's
// component-scoped logger (e.g. the scheduler's or the task package's)
// keeps its component tag on every job-scoped line instead of falling
// back to the bare global Logger.
func WithJobID(base zerolog.Logger, jobID uint64) zerolog.Logger {
	return base.With().Uint64("job_id", jobID).Logger()
}

// WithStepID chains a step_id field onto base, identifying which plan
// step (dagctl.TaskRef.StepID) a wrapped-task log line belongs to.
func WithStepID(base zerolog.Logger, stepID int) zerolog.Logger {
	return base.With().Int("step_id", stepID).Logger()
}

// WithTxID chains a tx_id field onto base, identifying which
// transaction a commit-stage or abort log line belongs to.
func WithTxID(base zerolog.Logger, txID uint64) zerolog.Logger {
	return base.With().Uint64("tx_id", txID).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
