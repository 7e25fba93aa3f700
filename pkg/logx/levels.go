package logx

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is ordered: a logger set to a level drops everything below it.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelFatal entries exit the process after being written.
	LevelFatal
	LevelOff
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL", "OFF"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel is case-insensitive and accepts TRACE and WARNING as aliases.
// Unknown input yields LevelInfo.
func ParseLevel(s string) Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "TRACE":
		return LevelDebug
	case "WARNING":
		return LevelWarn
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i)
		}
	}
	return LevelInfo
}

func (l Level) zap() zapcore.Level {
	if l >= LevelOff {
		return zapcore.FatalLevel + 1
	}
	// zap puts DPanic and Panic between Error and Fatal
	if l == LevelFatal {
		return zapcore.FatalLevel
	}
	return zapcore.DebugLevel + zapcore.Level(l)
}
