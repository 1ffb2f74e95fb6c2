// Package config loads server configuration from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	RateLimitMemory = "memory"
	RateLimitToken  = "token"
	RateLimitRedis  = "redis"

	// DevJWTSecret is used when JWT_SECRET is unset. Refused in production.
	DevJWTSecret = "dev-secret-change-in-production"
)

// devOrigins are always allowed so the Vite dev server keeps working.
var devOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:5000",
}

var (
	ErrProductionSecret   = errors.New("JWT_SECRET must be set in production")
	ErrWildcardOrigin     = errors.New("wildcard origin cannot be used with credentialed cookies")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for postgres storage")
	ErrMissingRedisURL    = errors.New("REDIS_URL is required for the redis rate limiter")
)

// Limit is one fixed-window quota.
type Limit struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

type Config struct {
	Port           string        `yaml:"port"`
	Env            string        `yaml:"env"`
	DatabaseURL    string        `yaml:"database_url"`
	Storage        string        `yaml:"storage"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenLifetime  time.Duration `yaml:"token_lifetime"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
	LogLevel       string        `yaml:"log_level"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`

	// Watchlist policy.
	UniqueSymbol  bool `yaml:"watchlist_unique_symbol"`
	CascadeDelete bool `yaml:"watchlist_cascade_delete"`

	RateLimitBackend string `yaml:"rate_limit_backend"`
	RedisURL         string `yaml:"redis_url"`
	GeneralLimit     Limit  `yaml:"general_limit"`
	AuthLimit        Limit  `yaml:"auth_limit"`
}

// Defaults returns a development configuration.
func Defaults() Config {
	return Config{
		Port:             "5000",
		Env:              EnvDevelopment,
		Storage:          StoragePostgres,
		JWTSecret:        DevJWTSecret,
		TokenLifetime:    7 * 24 * time.Hour,
		BcryptCost:       12,
		LogLevel:         "info",
		RequestTimeout:   15 * time.Second,
		MetricsEnabled:   true,
		UniqueSymbol:     true,
		CascadeDelete:    true,
		RateLimitBackend: RateLimitMemory,
		GeneralLimit:     Limit{Window: 15 * time.Minute, Max: 200},
		AuthLimit:        Limit{Window: 15 * time.Minute, Max: 10},
	}
}

// Load builds a Config from defaults, the YAML file named by CONFIG_FILE (if
// any) and then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.loadEnv(os.Getenv); err != nil {
		return cfg, err
	}

	cfg.AllowedOrigins = mergeOrigins(devOrigins, cfg.AllowedOrigins)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return c.parseYAML(data)
}

func (c *Config) parseYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config yaml: %w", err)
	}
	return nil
}

// loadEnv overlays environment variables. getenv is os.Getenv outside tests.
func (c *Config) loadEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("APP_ENV", &c.Env)
	// NODE_ENV is accepted for parity with the old Node deployment.
	if c.Env == EnvDevelopment {
		str("NODE_ENV", &c.Env)
	}
	str("DATABASE_URL", &c.DatabaseURL)
	str("STORAGE", &c.Storage)
	str("JWT_SECRET", &c.JWTSecret)
	str("LOG_LEVEL", &c.LogLevel)
	str("RATE_LIMIT_BACKEND", &c.RateLimitBackend)
	str("REDIS_URL", &c.RedisURL)

	c.Env = strings.ToLower(c.Env)
	c.Storage = strings.ToLower(c.Storage)
	c.RateLimitBackend = strings.ToLower(c.RateLimitBackend)

	if v := getenv("FRONTEND_URL"); v != "" {
		c.AllowedOrigins = append(c.AllowedOrigins, v)
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = append(c.AllowedOrigins, strings.Split(v, ",")...)
	}

	var errs []error
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
	num := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	dur("JWT_LIFETIME", &c.TokenLifetime)
	dur("REQUEST_TIMEOUT", &c.RequestTimeout)
	dur("RATE_LIMIT_WINDOW", &c.GeneralLimit.Window)
	dur("AUTH_RATE_LIMIT_WINDOW", &c.AuthLimit.Window)
	num("RATE_LIMIT_MAX", &c.GeneralLimit.Max)
	num("AUTH_RATE_LIMIT_MAX", &c.AuthLimit.Max)
	num("BCRYPT_COST", &c.BcryptCost)
	flag("WATCHLIST_UNIQUE_SYMBOL", &c.UniqueSymbol)
	flag("WATCHLIST_CASCADE_DELETE", &c.CascadeDelete)
	flag("METRICS_ENABLED", &c.MetricsEnabled)
	flag("TRUST_PROXY", &c.TrustProxy)

	return errors.Join(errs...)
}

func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// Validate checks the configuration is usable for the selected environment.
func (c Config) Validate() error {
	var errs []error

	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == DevJWTSecret) {
		errs = append(errs, ErrProductionSecret)
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			errs = append(errs, ErrWildcardOrigin)
			break
		}
	}
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE %q", c.Storage))
	}
	switch c.RateLimitBackend {
	case RateLimitMemory, RateLimitToken:
	case RateLimitRedis:
		if c.RedisURL == "" {
			errs = append(errs, ErrMissingRedisURL)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend))
	}
	if c.TokenLifetime <= 0 {
		errs = append(errs, errors.New("JWT_LIFETIME must be positive"))
	}
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range 10-14", c.BcryptCost))
	}
	if c.GeneralLimit.Max <= 0 || c.AuthLimit.Max <= 0 {
		errs = append(errs, errors.New("rate limit max must be positive"))
	}
	if c.GeneralLimit.Window <= 0 || c.AuthLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}

	return errors.Join(errs...)
}

// mergeOrigins returns base plus extra with trailing slashes trimmed and duplicates removed.
func mergeOrigins(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, o := range list {
			o = strings.TrimRight(strings.TrimSpace(o), "/")
			if o == "" {
				continue
			}
			if _, ok := seen[o]; ok {
				continue
			}
			seen[o] = struct{}{}
			out = append(out, o)
		}
	}
	return out
}
