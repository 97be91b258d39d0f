package log

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, keyAndValues ...interface{})
	Info(msg string, keyAndValues ...interface{})
	Warn(msg string, keyAndValues ...interface{})
	Error(msg string, keyAndValues ...interface{})
	Fatal(msg string, keyAndValues ...interface{})
}

type ZapLogger struct {
	inner *zap.SugaredLogger
}

func NewZapLogger(log *zap.Logger) ZapLogger {
	return ZapLogger{inner: log.Sugar()}
}

func (l ZapLogger) Debug(msg string, keyAndValues ...interface{}) {
	l.inner.Debugw(msg, keyAndValues...)
}

func (l ZapLogger) Info(msg string, keyAndValues ...interface{}) {
	l.inner.Infow(msg, keyAndValues...)
}

func (l ZapLogger) Warn(msg string, keyAndValues ...interface{}) {
	l.inner.Warnw(msg, keyAndValues...)
}

func (l ZapLogger) Error(msg string, keyAndValues ...interface{}) {
	l.inner.Errorw(msg, keyAndValues...)
}

func (l ZapLogger) Fatal(msg string, keyAndValues ...interface{}) {
	l.inner.Fatalw(msg, keyAndValues...)
}

// Sync flushes buffered entries.
func (l ZapLogger) Sync() error {
	return l.inner.Sync()
}

// Level names accepted on the command line.
const (
	LevelVerbose = "verbose"
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelError   = "error"
	LevelQuiet   = "quiet"
)

var nameToLevels = map[string]zapcore.Level{
	LevelVerbose: zapcore.DebugLevel,
	LevelDebug:   zapcore.DebugLevel,
	LevelInfo:    zapcore.InfoLevel,
	LevelWarn:    zapcore.WarnLevel,
	LevelError:   zapcore.ErrorLevel,
}

// LevelNames lists every valid level name.
func LevelNames() []string {
	return []string{LevelVerbose, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelQuiet}
}

// NewLogger builds a console logger at the named level. "quiet" discards
// everything.
func NewLogger(level string) (ZapLogger, error) {
	level = strings.ToLower(level)
	if level == LevelQuiet {
		return NewZapLogger(zap.NewNop()), nil
	}
	l, ok := nameToLevels[level]
	if !ok {
		return ZapLogger{}, errors.Newf("unknown log level %q, valid: %s",
			level, strings.Join(LevelNames(), ", "))
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(l)
	cfg.DisableStacktrace = level != LevelVerbose
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	z, err := cfg.Build()
	if err != nil {
		return ZapLogger{}, errors.Wrap(err, "build logger")
	}
	return NewZapLogger(z), nil
}

// NewNop returns a logger that discards everything. Handy in tests.
func NewNop() ZapLogger {
	return NewZapLogger(zap.NewNop())
}

// Printf writes a line of user facing output, such as a report, to stdout.
func Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
	fmt.Println("")
}
