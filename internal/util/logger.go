package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var ErrLogNotInitialized = errors.New("log object is not initialized yet")

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// MetricsLogger hands log lines to a single writer goroutine so callers on hot paths
// (message ingestion, sampler ticks) never block on disk. The zero value is usable and
// drops everything, which is what handler tests rely on.
type MetricsLogger struct {
	state  *loggerState
	fields []zap.Field
}

type loggerState struct {
	mu          sync.RWMutex
	logBuffer   chan leveledEntry
	handle      *os.File
	wg          sync.WaitGroup
	initialized bool
	zapLogger   *zap.Logger
}

type leveledEntry struct {
	level  int
	msg    string
	fields []zap.Field
}

type LoggerOptions struct {
	// Dir is created if missing. Empty means no log file.
	Dir      string
	FileName string
	Level    int
	Rewrite  bool
	Console  bool
}

func (m *MetricsLogger) Init(opts LoggerOptions) error {
	st := &loggerState{logBuffer: make(chan leveledEntry, LOG_BUFFER_SIZE)}

	var sinks []zapcore.WriteSyncer
	if opts.Dir != "" {
		if err := CheckAndCreateLogFolder(opts.Dir); err != nil {
			return err
		}

		flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
		if opts.Rewrite {
			flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
		handle, err := os.OpenFile(filepath.Join(opts.Dir, opts.FileName), flags, 0o644)
		if err != nil {
			return err
		}
		st.handle = handle
		sinks = append(sinks, zapcore.AddSync(handle))
	}
	if opts.Console || len(sinks) == 0 {
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	}

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(config)

	st.zapLogger = zap.New(zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), ZapLevel(opts.Level)))

	st.wg.Add(1)
	go st.logWriter()

	st.initialized = true
	m.state = st
	return nil
}

// ZapLevel maps the LOG_LEVEL_* constants onto zap levels; unknown values mean info.
func ZapLevel(level int) zapcore.Level {
	switch level {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// ParseLevel accepts error, warn, info or debug.
func ParseLevel(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LOG_LEVEL_ERROR
	case "warn", "warning":
		return LOG_LEVEL_WARN
	case "debug":
		return LOG_LEVEL_DEBUG
	}
	return LOG_LEVEL_INFO
}

func (st *loggerState) logWriter() {
	defer st.wg.Done()
	for e := range st.logBuffer {
		switch e.level {
		case LOG_LEVEL_ERROR:
			st.zapLogger.Error(e.msg, e.fields...)
		case LOG_LEVEL_WARN:
			st.zapLogger.Warn(e.msg, e.fields...)
		case LOG_LEVEL_DEBUG:
			st.zapLogger.Debug(e.msg, e.fields...)
		default:
			st.zapLogger.Info(e.msg, e.fields...)
		}
	}
	_ = st.zapLogger.Sync()
}

// With returns a logger that attaches fields to every line and shares the writer.
func (m *MetricsLogger) With(fields ...zap.Field) *MetricsLogger {
	merged := make([]zap.Field, 0, len(m.fields)+len(fields))
	merged = append(merged, m.fields...)
	merged = append(merged, fields...)
	return &MetricsLogger{state: m.state, fields: merged}
}

func (m *MetricsLogger) Log(level int, msg string, fields ...zap.Field) error {
	if m == nil || m.state == nil {
		return ErrLogNotInitialized
	}

	all := fields
	if len(m.fields) > 0 {
		all = make([]zap.Field, 0, len(m.fields)+len(fields))
		all = append(all, m.fields...)
		all = append(all, fields...)
	}

	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	if !m.state.initialized {
		return ErrLogNotInitialized
	}
	m.state.logBuffer <- leveledEntry{level: level, msg: msg, fields: all}
	return nil
}

func (m *MetricsLogger) Error(msg string, fields ...zap.Field) { _ = m.Log(LOG_LEVEL_ERROR, msg, fields...) }
func (m *MetricsLogger) Warn(msg string, fields ...zap.Field)  { _ = m.Log(LOG_LEVEL_WARN, msg, fields...) }
func (m *MetricsLogger) Info(msg string, fields ...zap.Field)  { _ = m.Log(LOG_LEVEL_INFO, msg, fields...) }
func (m *MetricsLogger) Debug(msg string, fields ...zap.Field) { _ = m.Log(LOG_LEVEL_DEBUG, msg, fields...) }

// LogEvent keeps the loose call style: an optional leading LOG_LEVEL_* followed by
// anything printable.
func (m *MetricsLogger) LogEvent(v ...interface{}) error {
	if len(v) == 0 {
		return nil
	}

	level := LOG_LEVEL_INFO
	if l, ok := v[0].(int); ok && l >= LOG_LEVEL_ERROR && l <= LOG_LEVEL_DEBUG && len(v) > 1 {
		level = l
		v = v[1:]
	}

	msg := strings.TrimSuffix(fmt.Sprintln(v...), "\n")
	return m.Log(level, msg)
}

func (m *MetricsLogger) DeInit() {
	if m == nil || m.state == nil {
		return
	}

	st := m.state
	st.mu.Lock()
	if !st.initialized {
		st.mu.Unlock()
		return
	}
	st.initialized = false
	close(st.logBuffer)
	st.mu.Unlock()

	st.wg.Wait()
	if st.handle != nil {
		st.handle.Close()
	}
}

func CheckAndCreateLogFolder(folderNameWithPath string) error {
	if _, err := os.Stat(folderNameWithPath); os.IsNotExist(err) {
		if err := os.MkdirAll(folderNameWithPath, 0o755); err != nil {
			return fmt.Errorf("failed to create the log folder: %w", err)
		}
	}
	return nil
}
