package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/sentinelgrid/authcore/jwt"
	"github.com/sentinelgrid/authcore/password"
	"github.com/sentinelgrid/authcore/permission"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	Session       SessionConfig
	RateLimit     RateLimitConfig
	PasswordReset PasswordResetConfig
	Account       AccountConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Store         StoreConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by authcore APIs.
//
// Secret is the HS256 signing key shared by every instance; it must be at least 32 bytes.
type JWTConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
type PasswordConfig struct {
	Algorithm      string // "bcrypt" (default) or "argon2id"
	BcryptCost     int
	Argon2         password.Argon2Params
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// ExpiryGrace is added to the session TTL so a refresh token presented in its final
// seconds still finds its session.
type SessionConfig struct {
	ExpiryGrace time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by authcore APIs.
//
// The login limiter is a fixed window per client IP. Every attempt counts,
// successful or not.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig defines a public type used by authcore APIs.
type PasswordResetConfig struct {
	TokenTTL time.Duration
	// GracePeriod keeps expired and used records so they are reported as such.
	GracePeriod         time.Duration
	NotifyTimeout       time.Duration
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	MaxRequests         int
	RequestWindow       time.Duration
}

// AccountConfig defines a public type used by authcore APIs.
type AccountConfig struct {
	DefaultRole permission.Role
}

// AuditConfig defines a public type used by authcore APIs.
//
// With DropIfFull a saturated buffer discards events and counts them; otherwise
// Emit blocks until there is room or the request context ends.
type AuditConfig struct {
	Enabled      bool
	BufferSize   int
	DropIfFull   bool
	WriteTimeout time.Duration
}

// MetricsConfig defines a public type used by authcore APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// StoreConfig defines a public type used by authcore APIs.
//
// OperationTimeout bounds every credential-store and Redis round trip.
type StoreConfig struct {
	OperationTimeout time.Duration
}

// DefaultConfig returns the documented defaults. JWT.Secret is left empty and
// must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authcore",
		},
		Password: PasswordConfig{
			Algorithm:      pw.Algorithm,
			BcryptCost:     pw.BcryptCost,
			Argon2:         pw.Argon2,
			MinLength:      pw.MinLength,
			MaxLength:      pw.MaxLength,
			UpgradeOnLogin: true,
		},
		Session: SessionConfig{
			ExpiryGrace: time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:            time.Hour,
			GracePeriod:         24 * time.Hour,
			NotifyTimeout:       5 * time.Second,
			EnableEmailThrottle: true,
			EnableIPThrottle:    true,
			MaxRequests:         5,
			RequestWindow:       time.Hour,
		},
		Account: AccountConfig{
			DefaultRole: permission.DefaultRole,
		},
		Audit: AuditConfig{
			Enabled:      true,
			BufferSize:   1024,
			DropIfFull:   true,
			WriteTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Store: StoreConfig{
			OperationTimeout: 2 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first invalid setting it finds. [Builder.Build] calls it.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < jwt.MinSecretBytes {
		return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinSecretBytes)
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be > AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	switch c.Password.Algorithm {
	case password.AlgorithmBcrypt:
		if c.Password.BcryptCost < password.MinBcryptCost {
			return fmt.Errorf("Password BcryptCost must be >= %d", password.MinBcryptCost)
		}
	case password.AlgorithmArgon2id:
	default:
		return errors.New("Password Algorithm must be 'bcrypt' or 'argon2id'")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Session
	if c.Session.ExpiryGrace < 0 {
		return errors.New("Session ExpiryGrace must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window < time.Second {
			return errors.New("RateLimit Window must be >= 1s")
		}
	}

	// Password reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.PasswordReset.GracePeriod < 0 {
		return errors.New("PasswordReset GracePeriod must be >= 0")
	}
	if c.PasswordReset.NotifyTimeout <= 0 {
		return errors.New("PasswordReset NotifyTimeout must be > 0")
	}
	if c.PasswordReset.EnableEmailThrottle || c.PasswordReset.EnableIPThrottle {
		if c.PasswordReset.MaxRequests <= 0 {
			return errors.New("PasswordReset MaxRequests must be > 0")
		}
		if c.PasswordReset.RequestWindow < time.Second {
			return errors.New("PasswordReset RequestWindow must be >= 1s")
		}
	}

	// Account
	if !c.Account.DefaultRole.Valid() {
		return errors.New("Account DefaultRole must be viewer, analyst or admin")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.WriteTimeout < 0 {
		return errors.New("Audit WriteTimeout must be >= 0")
	}

	// Store
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning flags a valid but risky setting.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list of warnings returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, len(r))
	for i, w := range r {
		codes[i] = w.Code
	}
	return codes
}

// Lint reports settings that pass [Config.Validate] but weaken the deployment.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.JWT.AccessTTL > time.Hour {
		add("access_ttl_long", "access tokens live longer than 1h; revocation is the only early cutoff")
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", "refresh tokens live longer than 30 days")
	}
	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", "token expiry leeway exceeds 30s")
	}
	if !c.RateLimit.Enabled {
		add("login_rate_limit_disabled", "login attempts are not throttled")
	}
	if !c.PasswordReset.EnableEmailThrottle && !c.PasswordReset.EnableIPThrottle {
		add("reset_throttle_disabled", "forgot-password requests are not throttled")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "security events are not recorded")
	}
	if c.Account.DefaultRole != permission.RoleViewer {
		add("default_role_elevated", "self-registered accounts receive more than viewer access")
	}
	return ws
}
