// Package config loads komikverse configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures every service knob, loaded from file, environment and defaults.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Site      SiteConfig      `mapstructure:"site"`
	DB        DBConfig        `mapstructure:"db"`
	Bookmarks BookmarksConfig `mapstructure:"bookmarks"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`
}

// UpstreamConfig points at the catalog API that pages and the proxy read from.
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SiteConfig struct {
	URL        string `mapstructure:"url"`
	Name       string `mapstructure:"name"`
	DeployDate string `mapstructure:"deploy_date"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type BookmarksConfig struct {
	Driver      string `mapstructure:"driver"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTIssuer          string        `mapstructure:"jwt_issuer"`
	JWTTTL             time.Duration `mapstructure:"jwt_ttl"`
	GoogleClientID     string        `mapstructure:"google_client_id"`
	GoogleClientSecret string        `mapstructure:"google_client_secret"`
	GoogleRedirectURL  string        `mapstructure:"google_redirect_url"`
}

type AnalyticsConfig struct {
	Sink      string `mapstructure:"sink"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads .env (when present), the optional config file at path and
// KOMIK_* environment variables, in increasing priority.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("KOMIK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")
	cfg.Site.URL = strings.TrimRight(cfg.Site.URL, "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.grpc_addr", "")
	v.SetDefault("upstream.base_url", "http://localhost:5000/api")
	v.SetDefault("upstream.timeout", 15*time.Second)
	v.SetDefault("site.url", "https://komikverse.com")
	v.SetDefault("site.name", "Komikcast")
	v.SetDefault("site.deploy_date", "2025-01-01")
	v.SetDefault("db.path", "")
	v.SetDefault("bookmarks.driver", "sqlite")
	v.SetDefault("bookmarks.postgres_dsn", "")
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_issuer", "komikverse")
	v.SetDefault("auth.jwt_ttl", 24*time.Hour)
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("auth.google_client_secret", "")
	v.SetDefault("auth.google_redirect_url", "")
	v.SetDefault("analytics.sink", "log")
	v.SetDefault("analytics.project_id", "")
	v.SetDefault("analytics.topic", "komikverse-events")
	v.SetDefault("logging.development", true)
}

// Validate performs sanity checks on the loaded configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url %q is not an absolute URL", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	if u, err := url.Parse(c.Site.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("site.url %q is not an absolute URL", c.Site.URL))
	}
	if _, err := time.Parse("2006-01-02", c.Site.DeployDate); err != nil {
		errs = append(errs, fmt.Errorf("site.deploy_date must be YYYY-MM-DD: %w", err))
	}
	switch c.Bookmarks.Driver {
	case "sqlite":
	case "postgres":
		if c.Bookmarks.PostgresDSN == "" {
			errs = append(errs, errors.New("bookmarks.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("bookmarks.driver %q must be sqlite or postgres", c.Bookmarks.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.JWTTTL <= 0 {
		errs = append(errs, errors.New("auth.jwt_ttl must be positive"))
	}
	if c.Auth.GoogleClientID != "" && (c.Auth.GoogleClientSecret == "" || c.Auth.GoogleRedirectURL == "") {
		errs = append(errs, errors.New("auth.google_client_secret and auth.google_redirect_url are required with auth.google_client_id"))
	}
	switch c.Analytics.Sink {
	case "log", "none":
	case "pubsub":
		if c.Analytics.ProjectID == "" || c.Analytics.Topic == "" {
			errs = append(errs, errors.New("analytics.project_id and analytics.topic are required for the pubsub sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("analytics.sink %q must be log, pubsub or none", c.Analytics.Sink))
	}
	return errors.Join(errs...)
}

// DeployTime is the parsed site.deploy_date.
func (c SiteConfig) DeployTime() time.Time {
	t, err := time.Parse("2006-01-02", c.DeployDate)
	if err != nil {
		return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// GoogleEnabled reports whether federated sign-in is configured.
func (c AuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}
