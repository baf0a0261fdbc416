package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache in front of the
// public hospital listing. When Enabled is false or no Redis client is
// configured, caching is disabled. Methods lists the HTTP methods to cache
// as a comma separated string; see AllowsMethod.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" env-default:"true"`
	Methods      string        `env:"CACHE_METHODS" env-default:"GET"`
	TTL          time.Duration `env:"CACHE_TTL" env-default:"30s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" env-default:"route_query"`
	Prefix       string        `env:"CACHE_PREFIX" env-default:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" env-default:"1048576"`
}

// AllowsMethod reports whether responses to method may be cached.
func (c CacheConfig) AllowsMethod(method string) bool {
	for _, p := range strings.Split(c.Methods, ",") {
		if strings.EqualFold(strings.TrimSpace(p), method) {
			return true
		}
	}
	return false
}
