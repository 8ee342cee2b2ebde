package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "TAGWIRE_LOG_LEVEL"
	EnvLogTimestamp = "TAGWIRE_LOG_TIMESTAMP"
	EnvLogNoColor   = "TAGWIRE_LOG_NOCOLOR"
	EnvLogBypass    = "TAGWIRE_LOG_BYPASS"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup for a profile.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Bypass    bool
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		apply(cfg, os.Stderr)
	})
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func apply(cfg Config, out io.Writer) {
	zerolog.SetGlobalLevel(cfg.Level)
	if cfg.Bypass {
		log.Logger = zerolog.New(io.Discard)
		return
	}
	writer := zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor, TimeFormat: time.RFC3339}
	ctx := zerolog.New(writer).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	log.Logger = ctx.Logger()
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogBypass)); ok {
		cfg.Bypass = v
	}
}

// ParseLevel maps a config or env level name onto a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	return parseLevel(raw)
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
