// Package config loads server configuration from YAML and the environment.
package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Media     MediaConfig     `yaml:"media"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	CORS      CORSConfig      `yaml:"cors"`
}

// AppConfig holds environment-wide settings.
type AppConfig struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"production"`
}

// IsDevelopment reports whether error details may be shown to clients.
func (a AppConfig) IsDevelopment() bool { return a.Env == "development" }

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"                env:"SERVER_ADDR"                env-default:":5000"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT" env-default:"10s"`
	ReadTimeout       time.Duration `yaml:"read_timeout"        env:"SERVER_READ_TIMEOUT"        env-default:"5m"`
	WriteTimeout      time.Duration `yaml:"write_timeout"       env:"SERVER_WRITE_TIMEOUT"       env-default:"5m"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"        env:"SERVER_IDLE_TIMEOUT"        env-default:"120s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"    env:"SERVER_SHUTDOWN_TIMEOUT"    env-default:"10s"`
	// TrustedProxies lists the IPs or CIDRs of reverse proxies whose
	// X-Forwarded-For header is believed. Empty trusts no one.
	TrustedProxies string `yaml:"trusted_proxies" env:"SERVER_TRUSTED_PROXIES"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH" env-default:"marketbook.sqlite3"`
}

// AuthConfig holds token and enrollment settings.
type AuthConfig struct {
	// JWTSecret signs tokens. Empty means a secret is generated once and
	// kept in the database.
	JWTSecret  string        `yaml:"jwt_secret"  env:"JWT_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl"   env:"AUTH_TOKEN_TTL"   env-default:"720h"`
	AdminCode  string        `yaml:"admin_code"  env:"ADMIN_CODE"       env-default:"ADMIN2024"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST" env-default:"12"`
}

// RateLimitConfig limits requests to the account endpoints per client IP.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"  env:"RATELIMIT_ENABLED"  env-default:"true"`
	PerHour int  `yaml:"per_hour" env:"RATELIMIT_PER_HOUR" env-default:"100"`
}

// MediaConfig selects where uploads are stored.
type MediaConfig struct {
	Driver   string   `yaml:"driver"    env:"MEDIA_DRIVER"    env-default:"local"`
	Dir      string   `yaml:"dir"       env:"MEDIA_DIR"       env-default:"uploads"`
	BaseURL  string   `yaml:"base_url"  env:"MEDIA_BASE_URL"  env-default:"/media"`
	MaxFiles int      `yaml:"max_files" env:"MEDIA_MAX_FILES" env-default:"5"`
	MaxSize  int64    `yaml:"max_size"  env:"MEDIA_MAX_SIZE"  env-default:"52428800"`
	S3       S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible storage settings.
type S3Config struct {
	Endpoint       string `yaml:"endpoint"         env:"S3_ENDPOINT"`
	Region         string `yaml:"region"           env:"S3_REGION"           env-default:"us-east-1"`
	Bucket         string `yaml:"bucket"           env:"S3_BUCKET"`
	AccessKey      string `yaml:"access_key"       env:"S3_ACCESS_KEY"`
	SecretKey      string `yaml:"secret_key"       env:"S3_SECRET_KEY"`
	ForcePathStyle bool   `yaml:"force_path_style" env:"S3_FORCE_PATH_STYLE" env-default:"true"`
	PublicURL      string `yaml:"public_url"       env:"S3_PUBLIC_URL"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
	File   string `yaml:"file"   env:"LOG_FILE"`
}

// TelemetryConfig holds tracing settings. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name"  env:"OTEL_SERVICE_NAME" env-default:"marketbook"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `yaml:"allowed_methods" env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders string `yaml:"allowed_headers" env:"CORS_ALLOWED_HEADERS" env-default:"Authorization,Content-Type"`
	MaxAge         int    `yaml:"max_age"         env:"CORS_MAX_AGE"         env-default:"86400"`
}
