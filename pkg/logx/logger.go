package logx

import (
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is a map of structured data
type Fields map[string]any

// Logger wraps a zap logger behind the package's field-map API.
type Logger struct {
	zl       *zap.Logger
	level    zap.AtomicLevel
	exitFunc func(int)
}

// NewLogger creates a new logger with the given config
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	var encoder zapcore.Encoder
	if config.Format == FormatJSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if config.EnableColors {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	level := zap.NewAtomicLevelAt(config.Level.zap())
	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)

	l := &Logger{level: level, exitFunc: os.Exit}
	opts := []zap.Option{zap.WithFatalHook(exitHook{l})}
	if config.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}
	if config.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", config.Service)))
	}
	l.zl = zap.New(core, opts...)
	return l
}

// NewFromZap adapts an existing zap logger, e.g. one built on an observer core.
func NewFromZap(zl *zap.Logger) *Logger {
	l := &Logger{level: zap.NewAtomicLevelAt(zapcore.DebugLevel), exitFunc: os.Exit}
	l.zl = zl.WithOptions(zap.WithFatalHook(exitHook{l}))
	return l
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zap())
}

// Sync flushes buffered output
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	zf := make([]zap.Field, 0, len(fields)+1)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}

	switch level {
	case LevelDebug:
		l.zl.Debug(msg, zf...)
	case LevelWarn:
		l.zl.Warn(msg, zf...)
	case LevelError:
		l.zl.Error(msg, zf...)
	case LevelFatal:
		l.zl.Fatal(msg, zf...)
	default:
		l.zl.Info(msg, zf...)
	}
}

// WithField creates a new entry with a field
func (l *Logger) WithField(key string, value any) *Entry {
	return newEntry(l).WithField(key, value)
}

// WithFields creates a new entry with fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return newEntry(l).WithFields(fields)
}

// WithError creates a new entry with an error
func (l *Logger) WithError(err error) *Entry {
	return newEntry(l).WithError(err)
}

type exitHook struct{ l *Logger }

func (h exitHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {
	h.l.exitFunc(1)
}
