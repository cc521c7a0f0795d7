// Package logging builds the shift-selector process logger
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	serviceName = "shift-selector"

	// One file per process start, e.g. logs/prod_2026-03-01_09-30-00.log
	fileTimeLayout    = "2006-01-02_15-04-05"
	consoleTimeLayout = "15:04:05"
)

// InitLogger returns the logger shared by the CLI commands and the HTTP server.
// Claims, releases and recounts show on stdout from Info; the JSON file under dir/logs
// also keeps Debug lines such as recount retries. The env "dev" lowers stdout to Debug.
func InitLogger(env, dir string) (*zap.Logger, error) {
	logsDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFileName := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", env, time.Now().Format(fileTimeLayout)))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	consoleLevel := zapcore.InfoLevel
	if env == "dev" {
		consoleLevel = zapcore.DebugLevel
	}

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayout)
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	fileEncoderConfig := zap.NewProductionEncoderConfig()
	fileEncoderConfig.TimeKey = "timestamp"
	fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Handlers and queue workers log concurrently
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig), zapcore.Lock(os.Stdout), consoleLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), zapcore.Lock(zapcore.AddSync(logFile)), zapcore.DebugLevel),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", serviceName), zap.String("env", env)), nil
}
