// Package config loads hxdash server and export settings from defaults, an
// optional YAML file and HXDASH_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Adapters the server can mount the dashboard on.
const (
	AdapterHTTP = "http"
	AdapterEcho = "echo"
	AdapterGin  = "gin"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Export    ExportConfig    `mapstructure:"export"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// ServerConfig holds live-mode settings.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	Adapter  string `mapstructure:"adapter"`
	BasePath string `mapstructure:"base_path"`
	// Key signs permalinks. Empty means a random key per process.
	Key string `mapstructure:"key"`
	// Encrypted makes permalinks opaque.
	Encrypted bool `mapstructure:"encrypted"`
	Metrics   bool `mapstructure:"metrics"`
}

// LogConfig holds slog settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExportConfig holds batch export settings.
type ExportConfig struct {
	// Header wraps exports in a standalone HTML document.
	Header bool `mapstructure:"header"`
}

// DashboardConfig selects the dashboard the CLI builds.
type DashboardConfig struct {
	Title string `mapstructure:"title"`
	// Model is "classifier" or "regressor".
	Model string `mapstructure:"model"`
	Seed  uint64 `mapstructure:"seed"`
}

// Load reads configuration. path names a YAML file; when empty,
// HXDASH_CONFIG is used, then ./hxdash.yaml if it exists. Env var overrides
// use prefix HXDASH_, e.g. HXDASH_SERVER_ADDR.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8050")
	v.SetDefault("server.adapter", AdapterHTTP)
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.key", "")
	v.SetDefault("server.encrypted", false)
	v.SetDefault("server.metrics", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("export.header", true)
	v.SetDefault("dashboard.title", "Model Explainer")
	v.SetDefault("dashboard.model", "classifier")
	v.SetDefault("dashboard.seed", 1)

	v.SetConfigType("yaml")
	if path == "" {
		path = os.Getenv("HXDASH_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("hxdash")
	}

	v.SetEnvPrefix("HXDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Server.Adapter {
	case AdapterHTTP, AdapterEcho, AdapterGin:
	default:
		return fmt.Errorf("server.adapter: unknown adapter %q (want http, echo or gin)", c.Server.Adapter)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", c.Log.Format)
	}
	switch c.Dashboard.Model {
	case "classifier", "regressor":
	default:
		return fmt.Errorf("dashboard.model: unknown model %q (want classifier or regressor)", c.Dashboard.Model)
	}
	if p := c.Server.BasePath; p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("server.base_path: %q must start with /", p)
	}
	return nil
}

func (c LogConfig) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Logger builds the slog logger the settings describe, writing to w.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// KeyBytes returns the permalink key, or nil when none is configured.
func (c ServerConfig) KeyBytes() []byte {
	if c.Key == "" {
		return nil
	}
	return []byte(c.Key)
}
