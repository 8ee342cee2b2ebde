package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/text"
)

const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type Config struct {
	Name        string       `toml:"name" comment:"service name used in logs and metrics"`
	Addr        string       `toml:"addr" comment:"listen address for recordctl serve"`
	CorsOrigins []string     `toml:"cors_origins"`
	Limits      LimitsConfig `toml:"limits"`
	Decode      DecodeConfig `toml:"decode"`
	Text        TextConfig   `toml:"text"`
	Store       StoreConfig  `toml:"store"`
}

type LimitsConfig struct {
	MaxRecordBytes int `toml:"max_record_bytes" comment:"largest record an encode may produce"`
}

type DecodeConfig struct {
	StrictLength bool `toml:"strict_length" comment:"reject records whose length prefix disagrees with their fields"`
}

type TextConfig struct {
	Format string `toml:"format" comment:"json or yaml"`
	Indent int    `toml:"indent" comment:"json indent width, 0 for compact"`
}

type StoreConfig struct {
	Backend   string `toml:"backend" comment:"memory, pebble, badger or redis"`
	Path      string `toml:"path" comment:"data directory for pebble and badger"`
	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`
	KeyPrefix string `toml:"key_prefix"`
}

func Default() Config {
	return Config{
		Name:        "recordctl",
		Addr:        ":9300",
		CorsOrigins: []string{"http://localhost:3000"},
		Limits:      LimitsConfig{MaxRecordBytes: buffer.DefaultLimits().MaxBytes},
		Text:        TextConfig{Format: text.FormatJSON},
		Store: StoreConfig{
			Backend:   BackendMemory,
			Path:      "./data",
			RedisAddr: "127.0.0.1:6379",
			KeyPrefix: "tagwire/",
		},
	}
}

type fileConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Limits      struct {
		MaxRecordBytes int `toml:"max_record_bytes"`
	} `toml:"limits"`
	Decode struct {
		StrictLength bool `toml:"strict_length"`
	} `toml:"decode"`
	Text struct {
		Format string `toml:"format"`
		Indent int    `toml:"indent"`
	} `toml:"text"`
	Store struct {
		Backend   string `toml:"backend"`
		Path      string `toml:"path"`
		RedisAddr string `toml:"redis_addr"`
		RedisDB   int    `toml:"redis_db"`
		KeyPrefix string `toml:"key_prefix"`
	} `toml:"store"`
}

// Load overlays the keys defined in the TOML file at path onto Default and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("limits", "max_record_bytes") {
		cfg.Limits.MaxRecordBytes = raw.Limits.MaxRecordBytes
	}
	if meta.IsDefined("decode", "strict_length") {
		cfg.Decode.StrictLength = raw.Decode.StrictLength
	}
	if meta.IsDefined("text", "format") {
		cfg.Text.Format = strings.ToLower(strings.TrimSpace(raw.Text.Format))
	}
	if meta.IsDefined("text", "indent") {
		cfg.Text.Indent = raw.Text.Indent
	}
	if meta.IsDefined("store", "backend") {
		cfg.Store.Backend = strings.ToLower(strings.TrimSpace(raw.Store.Backend))
	}
	if meta.IsDefined("store", "path") {
		cfg.Store.Path = strings.TrimSpace(raw.Store.Path)
	}
	if meta.IsDefined("store", "redis_addr") {
		cfg.Store.RedisAddr = strings.TrimSpace(raw.Store.RedisAddr)
	}
	if meta.IsDefined("store", "redis_db") {
		cfg.Store.RedisDB = raw.Store.RedisDB
	}
	if meta.IsDefined("store", "key_prefix") {
		cfg.Store.KeyPrefix = raw.Store.KeyPrefix
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	if cfg.Limits.MaxRecordBytes < buffer.LengthLen+1 {
		return fmt.Errorf("limits.max_record_bytes must be at least %d", buffer.LengthLen+1)
	}
	if _, err := text.EngineFor(cfg.Text.Format); err != nil {
		return fmt.Errorf("text.format: %w", err)
	}
	if cfg.Text.Indent < 0 || cfg.Text.Indent > 16 {
		return fmt.Errorf("text.indent must be between 0 and 16")
	}
	return ValidateStore(cfg.Store)
}

func ValidateStore(cfg StoreConfig) error {
	switch cfg.Backend {
	case BackendMemory:
	case BackendPebble, BackendBadger:
		if strings.TrimSpace(cfg.Path) == "" {
			return fmt.Errorf("store.path is required for %s", cfg.Backend)
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return fmt.Errorf("store.redis_addr is required for redis")
		}
		if cfg.RedisDB < 0 {
			return fmt.Errorf("store.redis_db must not be negative")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, pebble, badger, redis", cfg.Backend)
	}
	return nil
}

// BufferLimits converts the record size limit for encoders.
func (c Config) BufferLimits() buffer.Limits {
	return buffer.Limits{MaxBytes: c.Limits.MaxRecordBytes}
}

// TextEngine builds the configured text engine. Indent applies to JSON only.
func (c Config) TextEngine() (text.Engine, error) {
	e, err := text.EngineFor(c.Text.Format)
	if err != nil {
		return nil, err
	}
	if e.Name() == text.FormatJSON && c.Text.Indent > 0 {
		return text.JSON(c.Text.Indent), nil
	}
	return e, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
