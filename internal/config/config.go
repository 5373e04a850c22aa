// Package config provides application configuration loaded from a YAML file
// with environment variable overrides, defaults and validation. It centralizes
// bot settings such as the database DSN, the Discord guilds commands are
// registered to, ephemeral reply lifetime, logging, the ops HTTP server and
// observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when DISCORD_BOT_CONFIG is unset.
const DefaultPath = "config.yaml"

// OpsConfig defines the optional operational HTTP server.
type OpsConfig struct {
	Enabled            bool     `yaml:"enabled"`              // OPS_ENABLED
	Addr               string   `yaml:"addr"`                 // OPS_ADDR (e.g. ":9090")
	GinMode            string   `yaml:"gin_mode"`             // debug|release|test
	RateRPS            float64  `yaml:"rate_rps"`             // tokens per second (>= 0)
	RateBurst          int      `yaml:"rate_burst"`           // bucket size (>= 1)
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"` // empty allows all
	EnableHSTS         bool     `yaml:"enable_hsts"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `yaml:"enabled"`      // OTEL_ENABLED
	Endpoint    string  `yaml:"endpoint"`     // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    `yaml:"insecure"`     // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  `yaml:"service_name"` // OTEL_SERVICE_NAME
	SampleRatio float64 `yaml:"sample_ratio"` // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the bot.
type Config struct {
	// Discord
	Token    string   `yaml:"-"`                  // DISCORD_TOKEN, never read from the file
	GuildIDs []string `yaml:"discord_server_ids"` // empty registers commands globally

	// EphemeralSeconds is how long acknowledgments stay visible.
	EphemeralSeconds int `yaml:"temporary_message_time"`

	// Storage
	Database string `yaml:"database"` // sqlite:///path, a bare path, or postgres DSN

	// Presence
	MaxMessageRunes int           `yaml:"max_message_runes"`
	ReceiptTTL      time.Duration `yaml:"receipt_ttl"`
	PruneSchedule   string        `yaml:"prune_schedule"`

	// Logging
	LogLevel  string `yaml:"log_level"`  // debug|info|warn|error|fatal|panic
	LogPretty bool   `yaml:"log_pretty"` // console writer instead of JSON
	LogFile   string `yaml:"log_file"`   // optional extra sink

	Ops  OpsConfig  `yaml:"ops"`
	OTEL OTELConfig `yaml:"otel"`
}

// EphemeralTTL returns the ephemeral reply lifetime as a duration.
func (c Config) EphemeralTTL() time.Duration {
	return time.Duration(c.EphemeralSeconds) * time.Second
}

// Defaults returns the configuration used when neither file nor env set a value.
func Defaults() Config {
	return Config{
		EphemeralSeconds: 120,
		Database:         "sqlite:///checkin.db",
		MaxMessageRunes:  2048,
		ReceiptTTL:       time.Hour,
		PruneSchedule:    "@every 15m",
		LogLevel:         "info",
		Ops: OpsConfig{
			Addr:      ":9090",
			GinMode:   "release",
			RateRPS:   5,
			RateBurst: 10,
		},
		OTEL: OTELConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "checkin-bot",
			SampleRatio: 1.0,
		},
	}
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the YAML file at path (a missing file is fine), applies
// environment overrides, normalizes values, and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	// --- environment overrides ---
	cfg.Token = strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	cfg.Database = getenv("DATABASE_URL", cfg.Database)
	if ids := splitCSV(os.Getenv("DISCORD_SERVER_IDS")); len(ids) > 0 {
		cfg.GuildIDs = ids
	}
	cfg.EphemeralSeconds = getint("TEMPORARY_MESSAGE_TIME", cfg.EphemeralSeconds)
	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogPretty = getbool("LOG_PRETTY", cfg.LogPretty)
	cfg.LogFile = getenv("DISCORD_BOT_LOGFILE", cfg.LogFile)

	cfg.Ops.Enabled = getbool("OPS_ENABLED", cfg.Ops.Enabled)
	cfg.Ops.Addr = getenv("OPS_ADDR", cfg.Ops.Addr)
	cfg.Ops.GinMode = strings.ToLower(getenv("GIN_MODE", cfg.Ops.GinMode))

	cfg.OTEL.Enabled = getbool("OTEL_ENABLED", cfg.OTEL.Enabled)
	cfg.OTEL.Endpoint = getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTEL.Endpoint)
	cfg.OTEL.Insecure = getbool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTEL.Insecure)
	cfg.OTEL.ServiceName = getenv("OTEL_SERVICE_NAME", cfg.OTEL.ServiceName)
	cfg.OTEL.SampleRatio = getfloat("OTEL_TRACES_SAMPLER_ARG", cfg.OTEL.SampleRatio)

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.Ops.GinMode {
	case "debug", "release", "test":
	default:
		cfg.Ops.GinMode = "release"
	}
	cfg.GuildIDs = trimAll(cfg.GuildIDs)

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("log_level must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return cfg, errors.New("database must not be empty")
	}
	if cfg.EphemeralSeconds <= 0 {
		return cfg, errors.New("temporary_message_time must be > 0")
	}
	if cfg.MaxMessageRunes < 1 {
		return cfg, errors.New("max_message_runes must be >= 1")
	}
	if cfg.ReceiptTTL <= 0 {
		return cfg, errors.New("receipt_ttl must be > 0")
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		return cfg, fmt.Errorf("prune_schedule: %w", err)
	}
	if cfg.Ops.RateRPS < 0 {
		return cfg, errors.New("ops.rate_rps must be >= 0")
	}
	if cfg.Ops.RateBurst < 1 {
		return cfg, errors.New("ops.rate_burst must be >= 1")
	}
	if cfg.Ops.Enabled && strings.TrimSpace(cfg.Ops.Addr) == "" {
		return cfg, errors.New("ops.addr must not be empty when ops is enabled")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("otel.sample_ratio must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return trimAll(strings.Split(s, ","))
}

// trimAll drops blank entries and surrounding whitespace.
func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
