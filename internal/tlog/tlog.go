// Package tlog provides the process-wide logging setup: a dual-sink
// slog configuration (structured JSON to file, human-readable text to
// stdout) with lumberjack-based rotation, in the style used across the
// rest of this codebase.
//
// Core packages (buffer, bufferhold, minima, spectrum, bufq, timeslice,
// pulse) never call the global loggers set up here — the ones that log
// accept the Logger interface declared below at construction instead,
// so the core has no dependency on process-wide global state.
// ForComponent below is how the outer program satisfies that interface.
package tlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	loggerMu            sync.RWMutex
)

var currentStructuredOutputCloser io.Closer
var currentHumanReadableOutputCloser io.Closer

var currentLogLevel = new(slog.LevelVar)
var initOnce sync.Once
var initialized bool

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func defaultReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			label, exists := levelNames[level]
			if !exists {
				label = level.String()
			}
			a.Value = slog.StringValue(label)
		} else {
			a.Value = slog.StringValue(fmt.Sprintf("%v", a.Value.Any()))
		}
	}
	if a.Value.Kind() == slog.KindFloat64 {
		truncated := math.Trunc(a.Value.Float64()*100) / 100.0
		a.Value = slog.Float64Value(truncated)
	}
	return a
}

// Init sets up the global loggers. logPath is the structured-JSON log
// file, opened in append mode; stdout always gets the human-readable
// stream.
func Init(logPath string) {
	initOnce.Do(func() {
		currentLogLevel.Set(slog.LevelInfo)

		if dir := filepath.Dir(logPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
				fmt.Printf("failed to create log directory: %v\n", err)
				os.Exit(1)
			}
		}

		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666) //nolint:gosec
		if err != nil {
			fmt.Printf("failed to open log file %s: %v\n", logPath, err)
			logFile = os.Stderr
		}
		if logFile != os.Stderr {
			currentStructuredOutputCloser = logFile
		} else {
			currentStructuredOutputCloser = nil
		}

		structuredHandler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})
		humanReadableHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})

		loggerMu.Lock()
		structuredLogger = slog.New(structuredHandler)
		humanReadableLogger = slog.New(humanReadableHandler)
		loggerMu.Unlock()

		slog.SetDefault(structuredLogger)
		initialized = true
	})
}

func IsInitialized() bool { return initialized }

func SetLevel(level slog.Level) { currentLogLevel.Set(level) }

func SetOutput(structuredOutput, humanReadableOutput io.Writer) error {
	if structuredOutput == nil {
		return errors.New("structuredOutput writer cannot be nil")
	}
	if humanReadableOutput == nil {
		return errors.New("humanReadableOutput writer cannot be nil")
	}

	var closeErrors []error
	if currentStructuredOutputCloser != nil {
		if err := currentStructuredOutputCloser.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("closing previous structured output: %w", err))
		}
		currentStructuredOutputCloser = nil
	}
	if currentHumanReadableOutputCloser != nil {
		if err := currentHumanReadableOutputCloser.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("closing previous human-readable output: %w", err))
		}
		currentHumanReadableOutputCloser = nil
	}

	structuredHandler := slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{
		Level:       currentLogLevel,
		ReplaceAttr: defaultReplaceAttr,
	})
	humanReadableHandler := slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{
		Level:       currentLogLevel,
		ReplaceAttr: defaultReplaceAttr,
	})

	loggerMu.Lock()
	structuredLogger = slog.New(structuredHandler)
	humanReadableLogger = slog.New(humanReadableHandler)
	loggerMu.Unlock()

	if c, ok := structuredOutput.(io.Closer); ok {
		currentStructuredOutputCloser = c
	}
	if c, ok := humanReadableOutput.(io.Closer); ok {
		currentHumanReadableOutputCloser = c
	}

	slog.SetDefault(structuredLogger)

	if len(closeErrors) > 0 {
		return errors.Join(closeErrors...)
	}
	return nil
}

func Structured() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return structuredLogger
}

func HumanReadable() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return humanReadableLogger
}

// ForComponent returns a Logger sink bound to the global structured and
// human-readable loggers, tagged with the given component name. Returns
// a discarding stub if Init has not run, so core constructors never see
// a nil Logger.
func ForComponent(name string) Logger {
	loggerMu.RLock()
	logger, human := structuredLogger, humanReadableLogger
	loggerMu.RUnlock()
	if logger == nil {
		return discard{}
	}
	if human != nil {
		logger = slog.New(slog.NewMultiHandler(logger.Handler(), human.Handler()))
	}
	return &slogAdapter{l: logger.With("component", name)}
}

func Debug(msg string, args ...any) { slog.Debug(msg, args...) }
func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }

// Fatal logs at the custom FATAL level and terminates the process.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

func Trace(msg string, args ...any) { slog.Log(context.TODO(), LevelTrace, msg, args...) }

// NewFileLogger builds a standalone slog.Logger writing JSON to filePath
// via lumberjack rotation, independent of the global loggers. No
// pipeline stage calls it; stages receive the logger they are built with.
func NewFileLogger(filePath, componentName string, rotation RotationKind, maxSizeBytes int64, levelVar *slog.LevelVar) (Logger, func() error, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
			return nil, nil, fmt.Errorf("creating log directory %s: %w", dir, err)
		}
	}

	lj := &lumberjack.Logger{Filename: filePath}

	maxSizeMB := 100
	maxBackups := 3
	maxAge := 28

	if v := int(maxSizeBytes / (1024 * 1024)); v > 0 {
		maxSizeMB = v
	}

	switch rotation {
	case RotationDaily:
		maxAge = 1
		maxBackups = 30
	case RotationWeekly:
		maxAge = 7
		maxBackups = 4
	case RotationSize:
		// uses maxSizeMB as configured above
	default:
		slog.Warn("unknown log rotation kind, using size-based defaults", "kind", rotation)
	}

	lj.MaxSize = maxSizeMB
	lj.MaxBackups = maxBackups
	lj.MaxAge = maxAge

	var level slog.Leveler = slog.LevelInfo
	if levelVar != nil {
		level = levelVar
	}
	handler := slog.NewJSONHandler(lj, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: defaultReplaceAttr,
	})
	logger := slog.New(handler).With("component", componentName)

	return &slogAdapter{l: logger}, lj.Close, nil
}

// RotationKind selects a log rotation policy, mirroring Settings.Log.Rotation
// in the ambient config layer.
type RotationKind string

const (
	RotationDaily  RotationKind = "daily"
	RotationWeekly RotationKind = "weekly"
	RotationSize   RotationKind = "size"
)

// Logger is the minimal logging sink the core accepts. It deliberately
// has no dependency on slog types so core packages stay decoupled from
// the process-wide logging configuration: they accept this minimal
// sink interface rather than calling a global logger.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type slogAdapter struct{ l *slog.Logger }

func (a *slogAdapter) Debugf(format string, args ...any) { a.l.Debug(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Infof(format string, args ...any)  { a.l.Info(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Warnf(format string, args ...any)  { a.l.Warn(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Errorf(format string, args ...any) { a.l.Error(fmt.Sprintf(format, args...)) }

type discard struct{}

func (discard) Debugf(string, ...any) {}
func (discard) Infof(string, ...any)  {}
func (discard) Warnf(string, ...any)  {}
func (discard) Errorf(string, ...any) {}

// Discard is a Logger that drops everything, used by tests and by
// constructors called without an explicit logger.
var Discard Logger = discard{}
