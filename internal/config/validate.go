package config

import (
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Media drivers.
const (
	MediaLocal = "local"
	MediaS3    = "s3"
)

// Validate checks values the struct tags cannot express.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d (got %d)", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}
	if _, err := c.Server.Proxies(); err != nil {
		return err
	}
	if c.RateLimit.Enabled && c.RateLimit.PerHour <= 0 {
		return fmt.Errorf("ratelimit.per_hour must be > 0 (got %d)", c.RateLimit.PerHour)
	}

	switch c.Media.Driver {
	case MediaLocal:
		if c.Media.Dir == "" {
			return fmt.Errorf("media.dir is required for the local driver")
		}
	case MediaS3:
		if c.Media.S3.Bucket == "" {
			return fmt.Errorf("media.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("media.driver must be %q or %q (got %q)", MediaLocal, MediaS3, c.Media.Driver)
	}
	if c.Media.MaxFiles <= 0 || c.Media.MaxSize <= 0 {
		return fmt.Errorf("media.max_files and media.max_size must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}

	return nil
}

// Origins splits the CORS allowed origins list.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Proxies parses TrustedProxies. A bare address is treated as a single-host
// prefix.
func (s ServerConfig) Proxies() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range strings.Split(s.TrustedProxies, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			prefix, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
