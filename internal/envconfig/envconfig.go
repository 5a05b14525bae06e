// Package envconfig loads service configuration from the environment and an
// optional .env file using Viper, and maps it onto [authcore.Config].
package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/jwt"
)

// Env holds the process configuration. Environment variables override values
// from the .env file.
type Env struct {
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	MigrateOnBoot bool   `mapstructure:"DATABASE_MIGRATE"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTSecret         string        `mapstructure:"AUTH_JWT_SECRET"`
	JWTIssuer         string        `mapstructure:"AUTH_JWT_ISSUER"`
	AccessTTL         time.Duration `mapstructure:"AUTH_ACCESS_TTL"`
	RefreshTTL        time.Duration `mapstructure:"AUTH_REFRESH_TTL"`
	ResetTTL          time.Duration `mapstructure:"AUTH_RESET_TTL"`
	LoginMaxAttempts  int           `mapstructure:"AUTH_LOGIN_MAX_ATTEMPTS"`
	LoginWindow       time.Duration `mapstructure:"AUTH_LOGIN_WINDOW"`
	PasswordAlgorithm string        `mapstructure:"AUTH_PASSWORD_ALGORITHM"`
	BcryptCost        int           `mapstructure:"AUTH_BCRYPT_COST"`
	StoreTimeout      time.Duration `mapstructure:"AUTH_STORE_TIMEOUT"`
	AuditBuffer       int           `mapstructure:"AUTH_AUDIT_BUFFER"`
	AuditStdout       bool          `mapstructure:"AUTH_AUDIT_STDOUT"`

	CookieSecure       bool    `mapstructure:"AUTH_COOKIE_SECURE"`
	HTTPRateLimitRPS   float64 `mapstructure:"HTTP_RATE_LIMIT_RPS"`
	HTTPRateLimitBurst int     `mapstructure:"HTTP_RATE_LIMIT_BURST"`
}

func setDefaults(v *viper.Viper) {
	d := authcore.DefaultConfig()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MIGRATE", true)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("AUTH_JWT_ISSUER", d.JWT.Issuer)
	v.SetDefault("AUTH_ACCESS_TTL", d.JWT.AccessTTL.String())
	v.SetDefault("AUTH_REFRESH_TTL", d.JWT.RefreshTTL.String())
	v.SetDefault("AUTH_RESET_TTL", d.PasswordReset.TokenTTL.String())
	v.SetDefault("AUTH_LOGIN_MAX_ATTEMPTS", d.RateLimit.MaxAttempts)
	v.SetDefault("AUTH_LOGIN_WINDOW", d.RateLimit.Window.String())
	v.SetDefault("AUTH_PASSWORD_ALGORITHM", d.Password.Algorithm)
	v.SetDefault("AUTH_BCRYPT_COST", d.Password.BcryptCost)
	v.SetDefault("AUTH_STORE_TIMEOUT", d.Store.OperationTimeout.String())
	v.SetDefault("AUTH_AUDIT_BUFFER", d.Audit.BufferSize)
	v.SetDefault("AUTH_AUDIT_STDOUT", false)

	v.SetDefault("AUTH_COOKIE_SECURE", true)
	v.SetDefault("HTTP_RATE_LIMIT_RPS", 50.0)
	v.SetDefault("HTTP_RATE_LIMIT_BURST", 100)
}

// Load reads .env from the working directory if present, then the environment.
func Load() (*Env, error) {
	return LoadFile(".env")
}

// LoadFile is [Load] with an explicit dotenv path. A missing file is ignored.
func LoadFile(path string) (*Env, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("envconfig: read %s: %w", path, err)
			}
		}
	}
	v.AutomaticEnv()

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		return nil, fmt.Errorf("envconfig: %w", err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Env) validate() error {
	if e.HTTPAddr == "" {
		return errors.New("envconfig: HTTP_ADDR must be set")
	}
	if len(e.JWTSecret) < jwt.MinSecretBytes {
		return fmt.Errorf("envconfig: AUTH_JWT_SECRET must be at least %d bytes", jwt.MinSecretBytes)
	}
	if e.RedisAddr == "" {
		return errors.New("envconfig: REDIS_ADDR must be set")
	}
	if e.HTTPRateLimitRPS < 0 || e.HTTPRateLimitBurst < 0 {
		return errors.New("envconfig: HTTP_RATE_LIMIT_RPS and HTTP_RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

// AuthConfig applies the environment onto [authcore.DefaultConfig]. The
// result still needs [authcore.Config.Validate], which Build runs.
func (e *Env) AuthConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte(e.JWTSecret)
	cfg.JWT.Issuer = e.JWTIssuer
	cfg.JWT.AccessTTL = e.AccessTTL
	cfg.JWT.RefreshTTL = e.RefreshTTL
	cfg.PasswordReset.TokenTTL = e.ResetTTL
	cfg.RateLimit.MaxAttempts = e.LoginMaxAttempts
	cfg.RateLimit.Window = e.LoginWindow
	cfg.Password.Algorithm = e.PasswordAlgorithm
	cfg.Password.BcryptCost = e.BcryptCost
	cfg.Store.OperationTimeout = e.StoreTimeout
	cfg.Audit.BufferSize = e.AuditBuffer
	return cfg
}
