package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryQueue   LogCategory = "queue"   // Queue lifecycle events (JSON)
	CategorySession LogCategory = "session" // Raw session transcripts (plain text)
	CategoryError   LogCategory = "error"   // Application errors (JSON)
)

// MultiLogger provides categorized logging with separate dated output files.
// Queue events and errors are structured JSON; the session category holds
// the raw SteamCMD/7z transcript with command markers, appended directly.
type MultiLogger struct {
	loggers     map[LogCategory]*zap.Logger
	config      MultiLoggerConfig
	mu          sync.Mutex
	sessionFile *os.File
	sessionDate string
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	ml := &MultiLogger{
		loggers: make(map[LogCategory]*zap.Logger),
		config:  config,
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	queueLogger, err := ml.createStructuredLogger(CategoryQueue, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue logger: %w", err)
	}
	ml.loggers[CategoryQueue] = queueLogger

	errorLogger, err := ml.createStructuredLogger(CategoryError, zapcore.ErrorLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create error logger: %w", err)
	}
	ml.loggers[CategoryError] = errorLogger

	return ml, nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, level zapcore.Level) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	logPath := ml.categoryLogPath(category)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), level)
	return zap.New(core), nil
}

// categoryLogPath generates a log file path for a category with current date
func (ml *MultiLogger) categoryLogPath(category LogCategory) string {
	dateStr := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s-%s.log", category, dateStr)
	return filepath.Join(ml.config.LogsDir, filename)
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// Queue returns the queue logger (JSON format)
func (ml *MultiLogger) Queue() *zap.Logger {
	return ml.loggers[CategoryQueue]
}

// Error returns the error logger (JSON format)
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.loggers[CategoryError]
}

// LogQueueEvent logs a queue lifecycle event with structured data
func (ml *MultiLogger) LogQueueEvent(event string, fields ...zap.Field) {
	ml.Queue().Info(event, fields...)
}

// LogAppError logs an application-level error
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// sessionWriter returns the transcript file for today, rolling over at
// date boundaries. Caller must hold ml.mu.
func (ml *MultiLogger) sessionWriter() (*os.File, error) {
	dateStr := time.Now().Format("20060102")
	if ml.sessionFile != nil && ml.sessionDate == dateStr {
		return ml.sessionFile, nil
	}
	if ml.sessionFile != nil {
		ml.sessionFile.Close()
	}
	file, err := os.OpenFile(ml.categoryLogPath(CategorySession), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	ml.sessionFile = file
	ml.sessionDate = dateStr
	return file, nil
}

// WriteSessionHeader writes the session start marker with the command line
func (ml *MultiLogger) WriteSessionHeader(sessionID, cmdLine string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	file, err := ml.sessionWriter()
	if err != nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(file, "\n=== [%s] Session: %s ===\n", timestamp, sessionID)
	fmt.Fprintf(file, "$ %s\n", cmdLine)
}

// WriteSessionLine writes one raw subprocess output line to the transcript
func (ml *MultiLogger) WriteSessionLine(line string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	file, err := ml.sessionWriter()
	if err != nil {
		return
	}
	fmt.Fprintln(file, line)
}

// WriteSessionComplete writes the session end marker
func (ml *MultiLogger) WriteSessionComplete(sessionID string, success bool, message string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	file, err := ml.sessionWriter()
	if err != nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(file, "[%s] %s: %s\n=== END ===\n\n", timestamp, status, message)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	var lastErr error
	for _, l := range ml.loggers {
		if err := l.Sync(); err != nil {
			lastErr = err
		}
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.sessionFile != nil {
		if err := ml.sessionFile.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes all loggers
func (ml *MultiLogger) Close() error {
	lastErr := ml.Sync()

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.sessionFile != nil {
		if err := ml.sessionFile.Close(); err != nil {
			lastErr = err
		}
		ml.sessionFile = nil
	}
	return lastErr
}
