package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "marketbook.sqlite3", cfg.Database.Path)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "ADMIN2024", cfg.Auth.AdminCode)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.PerHour)
	assert.Equal(t, MediaLocal, cfg.Media.Driver)
	assert.Equal(t, 5, cfg.Media.MaxFiles)
	assert.Equal(t, int64(50<<20), cfg.Media.MaxSize)
	assert.False(t, cfg.App.IsDevelopment())
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := writeYAML(t, `
app:
  env: development
server:
  addr: "127.0.0.1:9090"
database:
  path: "/tmp/market.db"
auth:
  jwt_secret: "a-long-enough-secret-value"
  admin_code: "LetMeIn"
ratelimit:
  per_hour: 10
media:
  driver: s3
  s3:
    bucket: market
log:
  format: json
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("RATELIMIT_PER_HOUR", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, "/tmp/market.db", cfg.Database.Path)
	assert.Equal(t, "LetMeIn", cfg.Auth.AdminCode)
	assert.Equal(t, 25, cfg.RateLimit.PerHour)
	assert.Equal(t, MediaS3, cfg.Media.Driver)
	assert.Equal(t, "market", cfg.Media.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.Media.S3.Region)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database:  DatabaseConfig{Path: "x.db"},
			Auth:      AuthConfig{TokenTTL: time.Hour, BcryptCost: 10},
			RateLimit: RateLimitConfig{Enabled: true, PerHour: 100},
			Media:     MediaConfig{Driver: MediaLocal, Dir: "uploads", MaxFiles: 5, MaxSize: 1},
			Log:       LogConfig{Format: "text"},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"no ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"bad cost", func(c *Config) { c.Auth.BcryptCost = 99 }},
		{"zero rate", func(c *Config) { c.RateLimit.PerHour = 0 }},
		{"unknown driver", func(c *Config) { c.Media.Driver = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Media.Driver = MediaS3 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"no db path", func(c *Config) { c.Database.Path = "" }},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = "10.0.0.1, proxy.local" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCORSOrigins(t *testing.T) {
	c := CORSConfig{AllowedOrigins: " http://a.com, ,http://b.com"}
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, c.Origins())
}

func TestServerProxies(t *testing.T) {
	none, err := ServerConfig{}.Proxies()
	require.NoError(t, err)
	assert.Empty(t, none)

	proxies, err := ServerConfig{TrustedProxies: "10.0.0.1, 172.16.5.9/12 ,::1"}.Proxies()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.1/32"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("::1/128"),
	}, proxies)

	_, err = ServerConfig{TrustedProxies: "10.0.0.0/99"}.Proxies()
	assert.Error(t, err)
}
