// Package logger wraps a zap.SugaredLogger behind the same
// level-gated Info/Error/Fatal call-site surface this codebase has
// always used, so structured key-value fields replace plain Printf
// formatting without changing call sites.
package logger

import (
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelError Level = iota
	LevelInfo
)

var (
	mu           sync.Mutex
	currentLevel = LevelInfo
	base         = zap.Must(zap.NewProduction()).Sugar()
)

// SetLevel sets the global log level.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = l
}

// Setup initializes the logger's output.
func Setup(w io.Writer) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel)

	mu.Lock()
	base = zap.New(core).Sugar()
	mu.Unlock()
}

// Info logs a message with structured key-value fields if the level
// allows.
func Info(msg string, kv ...interface{}) {
	if currentLevel >= LevelInfo {
		base.Infow(msg, kv...)
	}
}

// Error logs a message with structured key-value fields.
func Error(msg string, kv ...interface{}) {
	if currentLevel >= LevelError {
		base.Errorw(msg, kv...)
	}
}

// Fatal logs independent of level and exits the process.
func Fatal(msg string, kv ...interface{}) {
	base.Fatalw(msg, kv...)
}
