package logx

import (
	"io"
	"os"
	"strings"
)

type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config describes how NewLogger builds its zap core.
type Config struct {
	Level  Level
	Format Format

	// EnableColors colors the level in console output.
	EnableColors bool
	EnableCaller bool

	// Service, when set, is attached to every line as the "service" field.
	Service string

	// Output defaults to os.Stdout.
	Output io.Writer
}

func DefaultConfig() *Config {
	return &Config{
		Level:        LevelInfo,
		Format:       FormatConsole,
		EnableColors: true,
		Output:       os.Stdout,
	}
}

// LoadFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_COLOR, LOG_CALLER and
// LOG_SERVICE on top of DefaultConfig.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = ParseLevel(v)
	}

	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	// cloudwatch ingests plain JSON lines
	case "json", "cloudwatch":
		cfg.Format = FormatJSON
		cfg.EnableColors = false
	case "console":
		cfg.Format = FormatConsole
	}

	if v, ok := envFlag("LOG_COLOR"); ok {
		cfg.EnableColors = v
	}
	if v, ok := envFlag("LOG_CALLER"); ok {
		cfg.EnableCaller = v
	}
	cfg.Service = os.Getenv("LOG_SERVICE")

	return cfg
}

func envFlag(key string) (value, ok bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	return strings.EqualFold(v, "true") || v == "1", true
}
