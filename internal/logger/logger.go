// Package logger provides the process-wide leveled logger.
//
// The package-level printf-style functions are the logging surface for the
// whole daemon; they are backed by zap so output can be structured (JSON)
// or human-readable (console) per configuration.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level to emit: DEBUG, INFO, WARN, ERROR.
	Level string

	// Format selects the encoder: "text" or "json".
	Format string

	// Output is "stdout", "stderr", or a file path.
	Output string
}

var (
	mu    sync.RWMutex
	sugar = newDefault()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func newDefault() *zap.SugaredLogger {
	l, _ := zap.NewDevelopment()
	return l.Sugar()
}

// Init replaces the process logger according to cfg. Safe to call once at
// startup; before Init the package logs through a development logger so
// early failures are never silent.
func Init(cfg Config) error {
	level.SetLevel(parseLevel(cfg.Level))

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	var sink zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		sink = zapcore.AddSync(os.Stdout)
	case "stderr":
		sink = zapcore.AddSync(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		sink = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(encoder, sink, level)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

// SetLevel adjusts the minimum emitted level at runtime.
func SetLevel(lvl string) {
	level.SetLevel(parseLevel(lvl))
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(format string, v ...any) {
	current().Debugf(format, v...)
}

func Info(format string, v ...any) {
	current().Infof(format, v...)
}

func Warn(format string, v ...any) {
	current().Warnf(format, v...)
}

func Error(format string, v ...any) {
	current().Errorf(format, v...)
}
