// Package config loads connectshare CLI settings with Viper: defaults, then an
// optional YAML file, then CONNECTSHARE_* environment variables, then flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	connectshare "github.com/alinasr783/connect-share"
	"github.com/alinasr783/connect-share/baas"
	"github.com/alinasr783/connect-share/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. CONNECTSHARE_REDIS_URL.
const EnvPrefix = "CONNECTSHARE"

// Config holds the CLI configuration.
type Config struct {
	Addr          string `mapstructure:"addr"`
	RedisURL      string `mapstructure:"redis_url"`
	EmbeddedRedis bool   `mapstructure:"embedded_redis"`
	SigningKey    string `mapstructure:"signing_key"`
	KeyPrefix     string `mapstructure:"key_prefix"`

	Log      LogConfig      `mapstructure:"log"`
	Query    QueryConfig    `mapstructure:"query"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type QueryConfig struct {
	StaleTime      time.Duration `mapstructure:"stale_time"`
	GCTime         time.Duration `mapstructure:"gc_time"`
	Retry          int           `mapstructure:"retry"`
	RefetchOnFocus bool          `mapstructure:"refetch_on_focus"`
}

type RealtimeConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// PortalConfig controls the web portal's per-browser state.
type PortalConfig struct {
	MaxSessions  int    `mapstructure:"max_sessions"`
	CookieName   string `mapstructure:"cookie_name"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
	// PendingWait bounds how long a guarded page waits for the user to load.
	PendingWait time.Duration `mapstructure:"pending_wait"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Audit   bool `mapstructure:"audit"`
}

// flagKeys maps flag names to their configuration keys.
var flagKeys = map[string]string{
	"addr":           "addr",
	"redis-url":      "redis_url",
	"embedded-redis": "embedded_redis",
	"signing-key":    "signing_key",
	"key-prefix":     "key_prefix",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"stale-time":     "query.stale_time",
	"gc-time":        "query.gc_time",
	"realtime":       "realtime.enabled",
	"metrics":        "metrics.enabled",
}

// Load reads configuration. configPath may be empty, in which case
// connectshare.yaml is looked up in the working directory and a missing file is
// not an error. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("connectshare")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := connectshare.DefaultConfig()

	v.SetDefault("addr", ":8080")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("embedded_redis", false)
	v.SetDefault("signing_key", "")
	v.SetDefault("key_prefix", baas.DefaultConfig().KeyPrefix)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("query.stale_time", def.Query.StaleTime)
	v.SetDefault("query.gc_time", def.Query.GCTime)
	v.SetDefault("query.retry", def.Query.Retry)
	v.SetDefault("query.refetch_on_focus", def.Query.RefetchOnFocus)

	v.SetDefault("realtime.enabled", def.Realtime.Enabled)

	v.SetDefault("portal.max_sessions", 1024)
	v.SetDefault("portal.cookie_name", "cs_session")
	v.SetDefault("portal.cookie_secure", false)
	v.SetDefault("portal.pending_wait", 2*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.audit", false)
}

// Validate checks settings the engine and backend do not check themselves.
func (c *Config) Validate() error {
	if err := logging.Validate(logging.Options{Level: c.Log.Level, Format: c.Log.Format}); err != nil {
		return err
	}
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if !c.EmbeddedRedis && strings.TrimSpace(c.RedisURL) == "" {
		return errors.New("redis_url is required unless embedded_redis is set")
	}
	if c.Portal.MaxSessions <= 0 {
		return errors.New("portal.max_sessions must be > 0")
	}
	if strings.TrimSpace(c.Portal.CookieName) == "" {
		return errors.New("portal.cookie_name is required")
	}
	engineCfg := c.EngineConfig()
	return engineCfg.Validate()
}

// Logging returns the logger options.
func (c *Config) Logging() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}

// EngineConfig maps the CLI settings onto an engine configuration.
func (c *Config) EngineConfig() connectshare.Config {
	cfg := connectshare.DefaultConfig()
	cfg.Query.StaleTime = c.Query.StaleTime
	cfg.Query.GCTime = c.Query.GCTime
	cfg.Query.Retry = c.Query.Retry
	cfg.Query.RefetchOnFocus = c.Query.RefetchOnFocus
	cfg.Realtime.Enabled = c.Realtime.Enabled
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	cfg.Audit.Enabled = c.Metrics.Audit
	return cfg
}

// BackendConfig maps the CLI settings onto a backend configuration.
func (c *Config) BackendConfig() (baas.Config, error) {
	cfg := baas.DefaultConfig()
	cfg.KeyPrefix = c.KeyPrefix
	if len(c.SigningKey) < 32 {
		return cfg, errors.New("signing_key must be at least 32 bytes")
	}
	cfg.SigningKey = []byte(c.SigningKey)
	return cfg, nil
}
