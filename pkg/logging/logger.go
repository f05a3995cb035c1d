package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   = zap.NewNop()
	loggerMu sync.RWMutex
	logFile  *os.File
	isInited bool
)

// Config holds logger configuration.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
	// OutputPath is "stdout", "stderr" or a file path. Empty means stdout.
	OutputPath string `yaml:"output_path"`
}

// Init installs a global logger built from config. It fails if a logger is
// already installed; call Close first to reinitialize.
func Init(config Config) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if isInited {
		return fmt.Errorf("logger already initialized; call Close() first to reinitialize")
	}

	l, f, err := build(config)
	if err != nil {
		return err
	}

	logger = l
	logFile = f
	isInited = true
	return nil
}

// InitDefault installs an info-level console logger on stdout. It is a
// no-op when a logger is already installed.
func InitDefault() {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if isInited {
		return
	}

	l, _, _ := build(Config{Level: "info", Format: "console"})
	logger = l
	isInited = true
}

// Close flushes the logger, closes an open log file and restores the no-op
// logger. It is safe to call multiple times.
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if !isInited {
		return nil
	}

	_ = logger.Sync()

	var err error
	if logFile != nil {
		err = logFile.Close()
		logFile = nil
	}

	logger = zap.NewNop()
	isInited = false
	return err
}

// GetLogger returns the installed logger.
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func build(config Config) (*zap.Logger, *os.File, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(config.Level))); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	ws, file, err := writeSyncer(config.OutputPath)
	if err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(encoder(config.Format), ws, level)
	return zap.New(core, zap.AddCaller()), file, nil
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	if strings.ToLower(format) == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func writeSyncer(path string) (zapcore.WriteSyncer, *os.File, error) {
	switch strings.ToLower(path) {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil, nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return zapcore.AddSync(file), file, nil
}
