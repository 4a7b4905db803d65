package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from an optional yaml file, applying defaults and
// environment overrides (dots replaced with underscores, e.g. AUTH_ACCESS_SECRET).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("app.name", "clipstream-api")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.rate_per_second", 10)

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", "30m")

	// Secrets default empty so AutomaticEnv can bind them during Unmarshal.
	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.access_ttl", "60m")
	v.SetDefault("auth.refresh_ttl", "720h")
	v.SetDefault("auth.issuer", "clipstream")
	v.SetDefault("auth.call_timeout", "5s")
	v.SetDefault("auth.cookie_domain", "")
	v.SetDefault("auth.cookie_path", "/")
	v.SetDefault("auth.cookie_secure", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Auth.AccessSecret) == "" || strings.TrimSpace(cfg.Auth.RefreshSecret) == "" {
		return nil, errors.New("config: auth.access_secret and auth.refresh_secret are required")
	}
	return &cfg, nil
}
