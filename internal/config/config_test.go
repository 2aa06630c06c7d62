package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "http://localhost:5000/api", cfg.Upstream.BaseURL)
	require.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, "https://komikverse.com", cfg.Site.URL)
	require.Equal(t, "sqlite", cfg.Bookmarks.Driver)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWTTTL)
	require.Equal(t, "log", cfg.Analytics.Sink)
	require.False(t, cfg.Auth.GoogleEnabled())
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Site.DeployTime())
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  addr: ":9090"
upstream:
  base_url: "https://api.example.com/api///"
  timeout: 3s
site:
  url: "https://komik.example.com/"
  deploy_date: "2025-06-01"
bookmarks:
  driver: postgres
  postgres_dsn: "postgres://u:p@localhost/komik"
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "https://api.example.com/api", cfg.Upstream.BaseURL)
	require.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, "https://komik.example.com", cfg.Site.URL)
	require.Equal(t, "postgres", cfg.Bookmarks.Driver)
	require.False(t, cfg.Logging.Development)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KOMIK_UPSTREAM_BASE_URL", "http://backend:5000/api/")
	t.Setenv("KOMIK_ANALYTICS_SINK", "none")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://backend:5000/api", cfg.Upstream.BaseURL)
	require.Equal(t, "none", cfg.Analytics.Sink)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"relative upstream": func(c *Config) { c.Upstream.BaseURL = "/api" },
		"zero timeout":      func(c *Config) { c.Upstream.Timeout = 0 },
		"bad deploy date":   func(c *Config) { c.Site.DeployDate = "01/01/2025" },
		"unknown driver":    func(c *Config) { c.Bookmarks.Driver = "firestore" },
		"postgres w/o dsn":  func(c *Config) { c.Bookmarks.Driver = "postgres" },
		"pubsub w/o project": func(c *Config) {
			c.Analytics.Sink = "pubsub"
			c.Analytics.ProjectID = ""
		},
		"google w/o secret": func(c *Config) { c.Auth.GoogleClientID = "id" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func validConfig() Config {
	return Config{
		Server:    ServerConfig{Addr: ":8080"},
		Upstream:  UpstreamConfig{BaseURL: "http://localhost:5000/api", Timeout: time.Second},
		Site:      SiteConfig{URL: "https://komikverse.com", DeployDate: "2025-01-01"},
		Bookmarks: BookmarksConfig{Driver: "sqlite"},
		Auth:      AuthConfig{JWTSecret: "s", JWTTTL: time.Hour},
		Analytics: AnalyticsConfig{Sink: "log", Topic: "t"},
	}
}
