package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger provides structured diagnostic logging for uirun components.
// Records are zerolog JSON lines written to a run-specific file in the
// configured log directory (default .uirun/logs).
//
// This is the secondary diagnostic channel: lifecycle events go to the
// event log, everything the framework wants to say about itself goes here.
type Logger struct {
	runID     string
	component string
	file      *os.File
	zl        zerolog.Logger
	logPath   string
	closeOnce sync.Once
}

// Config controls where and how verbosely loggers write.
type Config struct {
	// Dir is the log directory. Empty keeps the default.
	Dir string

	// Level is a zerolog level name ("debug", "info", ...). Empty means info.
	Level string
}

const defaultLogDir = ".uirun/logs"

var (
	// Global run ID for the current execution
	runID     string
	runIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir = defaultLogDir

	// initOnce ensures directory initialization happens once
	initOnce sync.Once

	// initErr stores any error from directory initialization
	initErr error

	configureOnce sync.Once
)

// Configure sets the log directory and level. Only the first call has any
// effect, and it must happen before the first NewLogger call to change the
// directory.
func Configure(cfg Config) {
	configureOnce.Do(func() {
		if cfg.Dir != "" {
			logDir = cfg.Dir
		}
		level := zerolog.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		} else if env := os.Getenv("UIRUN_LOG_LEVEL"); env != "" {
			if parsed, err := zerolog.ParseLevel(env); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339Nano
	})
}

// getRunID returns or creates the run ID for this execution
func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// initLogDirectory ensures the log directory exists
func initLogDirectory() error {
	initOnce.Do(func() {
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
		}
	})
	return initErr
}

// NewLogger creates a new logger for a specific component.
// The logger writes to <log dir>/<run-id>-uirun.log
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-uirun.log", id))

	// Append mode: every component of the run shares the file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(component, err), err
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		zl:        newZerolog(file, component, id),
		logPath:   logPath,
	}, nil
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(component string, err error) *Logger {
	l := &Logger{
		runID:     getRunID(),
		component: component,
		zl:        newZerolog(os.Stderr, component, getRunID()),
	}
	l.zl.Warn().Err(err).Msg("file logging unavailable, falling back to stderr")
	return l
}

// NewWriterLogger builds a logger on an arbitrary writer. Nothing is closed
// by Close.
func NewWriterLogger(w io.Writer, component string) *Logger {
	return &Logger{
		runID:     getRunID(),
		component: component,
		zl:        newZerolog(w, component, getRunID()),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{component: "nop", zl: zerolog.Nop()}
}

func newZerolog(w io.Writer, component, id string) zerolog.Logger {
	return zerolog.New(w).With().
		Timestamp().
		Str("component", component).
		Str("run_id", id).
		Logger()
}

// With returns a child logger carrying an extra string field. The child
// shares the parent's file; closing it is a no-op.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		runID:     l.runID,
		component: l.component,
		zl:        l.zl.With().Str(key, value).Logger(),
		logPath:   l.logPath,
	}
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// Err logs err at error level with a message.
func (l *Logger) Err(err error, msg string) {
	l.zl.Error().Err(err).Msg(msg)
}

// Zerolog exposes the underlying zerolog logger for callers that want
// typed fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// RunID returns the current run ID
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetRunID returns the current global run ID
func GetRunID() string {
	return getRunID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
