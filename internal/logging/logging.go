// Package logging sets up the shared Zap logger used across the pipeline.
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFilePath = "logs/medusaguard.log"

var (
	once sync.Once
	base *zap.Logger
)

// Logger returns the process-wide logger, building it on first use.
// Output goes to the console and to logs/medusaguard.log.
func Logger() *zap.Logger {
	once.Do(func() {
		base = build()
	})
	return base
}

// Sugar returns the sugared form of the shared logger.
func Sugar() *zap.SugaredLogger {
	return Logger().Sugar()
}

func build() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cfg.OutputPaths = []string{"stdout"}

	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err == nil {
		cfg.OutputPaths = append(cfg.OutputPaths, logFilePath)
	}

	logger, err := cfg.Build()
	if err != nil {
		// fall back to a no-frills logger rather than failing startup
		logger = zap.NewExample()
	}
	return logger
}
