package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authkeeper/internal/service/captcha"
	"github.com/nkiryanov/authkeeper/internal/service/password"
	"github.com/nkiryanov/authkeeper/internal/service/recovery"
)

const (
	defaultListenAddr      = "localhost:8081"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultPurgeInterval   = time.Hour
	defaultRequestTimeout  = 5 * time.Second
	defaultBaseURL         = "http://localhost:8081"
	defaultPasswordHasher  = password.AlgBcrypt
	defaultTokenAlgorithm  = "HS256"
	defaultConfirmationTTL = recovery.DefaultTTL
)

type Config struct {
	// Default logging level
	LogLevel string `env:"LOG_LEVEL"`

	// Environment: dev or prod
	Environment string `env:"ENVIRONMENT"`

	// Address on which the service will be run
	ListenAddr string `env:"RUN_ADDRESS"`

	// Public address used in links sent to users
	BaseURL string `env:"PUBLIC_BASE_URL"`

	// Database to connect to
	DatabaseDSN string `env:"DATABASE_URI"`

	// Redis to keep denylist and captcha and to publish events to
	// If empty in-process store is used and events are only logged
	RedisURL string `env:"REDIS_URL"`

	// Mail gateway to post notifications to
	// If empty notifications are only logged
	NotifyURL string `env:"NOTIFY_URL"`

	// OTLP/HTTP metrics URL, metrics are not exported if empty
	OtelEndpoint string `env:"OTEL_METRICS_ENDPOINT"`

	// Secret key to sign tokens with
	SecretKey string `env:"SECRET_KEY"`

	// HMAC algorithm to sign tokens with
	TokenAlgorithm string `env:"TOKEN_ALGORITHM"`

	// Password hasher: bcrypt or argon2id
	PasswordHasher string `env:"PASSWORD_HASHER"`

	AccessTTL       time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTTL      time.Duration `env:"REFRESH_TOKEN_TTL"`
	ConfirmationTTL time.Duration `env:"CONFIRMATION_TOKEN_TTL"`
	CaptchaTTL      time.Duration `env:"CAPTCHA_TTL"`

	// How often expired tokens are purged
	PurgeInterval time.Duration `env:"PURGE_INTERVAL"`

	// Deadline of every request
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// Trust X-User-Id header set by API gateway
	TrustIdentityHeader bool `env:"TRUST_IDENTITY_HEADER"`
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		Environment:     defaultEnvironment,
		ListenAddr:      defaultListenAddr,
		BaseURL:         defaultBaseURL,
		TokenAlgorithm:  defaultTokenAlgorithm,
		PasswordHasher:  defaultPasswordHasher,
		AccessTTL:       tokenmanager.DefaultAccessTokenTTL,
		RefreshTTL:      tokenmanager.DefaultRefreshTokenTTL,
		ConfirmationTTL: defaultConfirmationTTL,
		CaptchaTTL:      captcha.DefaultTTL,
		PurgeInterval:   defaultPurgeInterval,
		RequestTimeout:  defaultRequestTimeout,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(envMap)
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

// Load options from environment. Empty values are ignored and keep current option value.
func (c *Config) LoadEnv(environ map[string]string) error {
	set := make(map[string]string, len(environ))
	for k, v := range environ {
		if v != "" {
			set[k] = v
		}
	}

	if err := env.ParseWithOptions(c, env.Options{Environment: set}); err != nil {
		return fmt.Errorf("error while parsing environment. Err: %w", err)
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authkeeper", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis URL, in-process store is used if empty")
	fs.StringVar(&c.NotifyURL, "notify-url", c.NotifyURL, "Mail gateway URL, notifications are logged if empty")
	fs.StringVar(&c.OtelEndpoint, "otel-endpoint", c.OtelEndpoint, "OTLP/HTTP metrics URL, metrics are not exported if empty")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign tokens")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.BaseURL, "base-url", c.BaseURL, "Public base URL used in links sent to users")
	fs.StringVar(&c.TokenAlgorithm, "token-alg", c.TokenAlgorithm, "Token signing algorithm (HS256, HS384, HS512)")
	fs.StringVar(&c.PasswordHasher, "hasher", c.PasswordHasher, "Password hasher (bcrypt, argon2id)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.DurationVar(&c.ConfirmationTTL, "confirmation-ttl", c.ConfirmationTTL, "Password reset and email change token lifetime")
	fs.DurationVar(&c.CaptchaTTL, "captcha-ttl", c.CaptchaTTL, "Captcha lifetime")
	fs.DurationVar(&c.PurgeInterval, "purge-interval", c.PurgeInterval, "Interval of expired tokens purge")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Request deadline")
	fs.BoolVar(&c.TrustIdentityHeader, "trust-identity-header", c.TrustIdentityHeader, "Trust X-User-Id header set by API gateway")

	return fs.Parse(args)
}

// Check options required to start
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database connection string is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	for name, d := range map[string]time.Duration{
		"access token ttl":       c.AccessTTL,
		"refresh token ttl":      c.RefreshTTL,
		"confirmation token ttl": c.ConfirmationTTL,
		"captcha ttl":            c.CaptchaTTL,
		"purge interval":         c.PurgeInterval,
		"request timeout":        c.RequestTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	return errors.Join(errs...)
}
