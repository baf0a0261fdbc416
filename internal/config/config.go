package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv" // typed env binding with defaults
)

// Config holds all runtime configuration values. Each leaf field corresponds
// to an environment variable; nested sections group the values consumed by a
// single component so they can be passed around on their own.
type Config struct {
	Env            string        `env:"APP_ENV" env-default:"dev"`        // application environment (dev/test/prod)
	Port           string        `env:"APP_PORT" env-default:"3000"`      // HTTP port to listen on
	APIVersion     string        `env:"API_VERSION" env-default:"v1"`     // path segment under /api
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"5s"` // deadline for store calls per request
	SentryDSN      string        `env:"SENTRY_DSN"`                       // error reporting, disabled when empty
	RabbitURL      string        `env:"RABBITMQ_URL"`                     // auth event broker, disabled when empty

	Mongo     MongoConfig
	Auth      AuthConfig
	KDF       KDFConfig
	Audit     AuditDBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// MongoConfig points at the document store holding users, hospitals and
// refresh tokens.
type MongoConfig struct {
	URL      string `env:"MONGO_URL" env-required:"true"`
	Database string `env:"MONGO_DB" env-default:"carefinder"`
}

// AuthConfig carries everything the token issuer and verifier need.
type AuthConfig struct {
	Secret     string        `env:"JWT_SECRET" env-required:"true"` // shared HS256 signing secret
	Issuer     string        `env:"JWT_ISSUER" env-default:"carefinder"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"168h"`
}

// KDFConfig describes how passwords are turned into salt and hash.
type KDFConfig struct {
	Iterations int    `env:"KDF_ITERATIONS" env-default:"100000"`
	KeyLen     int    `env:"KDF_KEY_LEN" env-default:"512"`
	Digest     string `env:"KDF_DIGEST" env-default:"sha512"` // sha1 | sha256 | sha512
	SaltBytes  int    `env:"KDF_SALT_BYTES" env-default:"16"`
	Encoding   string `env:"KDF_ENCODING" env-default:"hex"` // hex | base64
}

// AuditDBConfig locates the MySQL database the auditor writes auth events
// into. When Host is empty the auditor falls back to a log file.
type AuditDBConfig struct {
	User string `env:"AUDIT_DB_USER" env-default:"root"`
	Pass string `env:"AUDIT_DB_PASS"`
	Host string `env:"AUDIT_DB_HOST"`
	Port string `env:"AUDIT_DB_PORT" env-default:"3306"`
	Name string `env:"AUDIT_DB_NAME" env-default:"carefinder_audit"`
}

// Enabled reports whether a MySQL audit sink is configured.
func (a AuditDBConfig) Enabled() bool { return a.Host != "" }

// Load reads configuration values from environment variables and returns a
// Config. Missing required variables and out-of-range values are reported
// as errors; the caller decides whether that is fatal.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}
	cfg.RateLimit.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be blank"))
	}
	if c.Auth.AccessTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be positive"))
	}
	if c.KDF.Iterations < 1 {
		errs = append(errs, errors.New("KDF_ITERATIONS must be at least 1"))
	}
	if c.KDF.KeyLen < 1 {
		errs = append(errs, errors.New("KDF_KEY_LEN must be at least 1"))
	}
	if c.KDF.SaltBytes < 1 {
		errs = append(errs, errors.New("KDF_SALT_BYTES must be at least 1"))
	}
	switch strings.ToLower(c.KDF.Digest) {
	case "sha1", "sha256", "sha512":
	default:
		errs = append(errs, fmt.Errorf("KDF_DIGEST %q is not supported", c.KDF.Digest))
	}
	switch strings.ToLower(c.KDF.Encoding) {
	case "hex", "base64":
	default:
		errs = append(errs, fmt.Errorf("KDF_ENCODING %q is not supported", c.KDF.Encoding))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction is used to pick the logger flavour.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}
