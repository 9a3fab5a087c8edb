package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration shared by the server and the CLI.
type Config struct {
	Server  ServerConfig
	Catalog CatalogConfig
	Export  ExportConfig
	Session SessionConfig
	Log     LogConfig
}

type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type CatalogConfig struct {
	Dir string
}

type ExportConfig struct {
	Dir           string
	ByteOrderMark bool
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Catalog: CatalogConfig{Dir: "./catalogs"},
		Export:  ExportConfig{Dir: "./exports"},
		Session: SessionConfig{TTL: 30 * time.Minute, SweepInterval: 5 * time.Minute},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads config.yaml from configPath when present and applies CATALOG_*
// environment overrides, e.g. CATALOG_SERVER_ADDR or CATALOG_CATALOG_DIR.
// A missing file is not an error. Load reports whether a file was read.
func Load(configPath string) (Config, bool, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if strings.TrimSpace(configPath) != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("catalog.dir", cfg.Catalog.Dir)
	v.SetDefault("export.dir", cfg.Export.Dir)
	v.SetDefault("export.byte_order_mark", cfg.Export.ByteOrderMark)
	v.SetDefault("session.ttl", cfg.Session.TTL)
	v.SetDefault("session.sweep_interval", cfg.Session.SweepInterval)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.development", cfg.Log.Development)

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, false, err
		}
		loaded = false
	}

	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Server.AllowedOrigins = splitList(v.GetStringSlice("server.allowed_origins"))
	cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	cfg.Server.IdleTimeout = v.GetDuration("server.idle_timeout")
	cfg.Server.ShutdownTimeout = v.GetDuration("server.shutdown_timeout")
	cfg.Catalog.Dir = v.GetString("catalog.dir")
	cfg.Export.Dir = v.GetString("export.dir")
	cfg.Export.ByteOrderMark = v.GetBool("export.byte_order_mark")
	cfg.Session.TTL = v.GetDuration("session.ttl")
	cfg.Session.SweepInterval = v.GetDuration("session.sweep_interval")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Development = v.GetBool("log.development")

	return cfg, loaded, nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
