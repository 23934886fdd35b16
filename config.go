package rapidauth

import (
	"errors"
	"time"

	"github.com/shrimay18/rapidcare-auth/jwt"
)

// Config is the full engine configuration. Zero values are filled in by
// Normalize; Validate rejects configurations the engine cannot run with.
// Config instances are treated as immutable once the engine is built.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	OTP      OTPConfig
	Session  SessionConfig
	Rate     RateConfig
	Account  AccountConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the stateless access token issuer.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod jwt.SigningMethod // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures bcrypt hashing.
type PasswordConfig struct {
	// Cost is the bcrypt work factor. Production deployments run 12.
	Cost int
	// MinLength is the minimum accepted password length.
	MinLength int
	// UpgradeOnLogin rehashes at the configured cost when a login verifies
	// against a hash produced with a lower cost.
	UpgradeOnLogin bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig is the failed-login lockout policy. After Threshold
// consecutive failures the account is locked for Duration; a successful
// login resets the counter.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig configures one-time code issuance and verification.
type OTPConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	// Retention keeps terminal code records resolvable past expiry so a
	// replayed code reports "used" instead of "not found".
	Retention    time.Duration
	StoreTimeout time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the refresh session store.
type SessionConfig struct {
	RedisPrefix string
	RefreshTTL  time.Duration
	// UsageLimit caps rotations per token family.
	UsageLimit int64
	// Retention keeps terminal session records resolvable past expiry for
	// replay detection.
	Retention    time.Duration
	StoreTimeout time.Duration
	// ReaperInterval is the background index sweep period. Zero disables
	// the reaper.
	ReaperInterval time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateConfig configures the fixed-window request throttles.
type RateConfig struct {
	EnableIPThrottle    bool
	EnableOTPThrottle   bool
	EnableRefreshLimits bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
	MaxOTPIssues        int
	OTPIssueCooldown    time.Duration
	MaxRefreshAttempts  int
	RefreshCooldown     time.Duration
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig configures signup behavior.
type AccountConfig struct {
	// DefaultRole is assigned when CreateAccountRequest.Role is empty.
	DefaultRole string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metric collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: jwt.MethodEd25519,
			Issuer:        "rapidcare-auth",
			Audience:      "rapidcare-client",
			Leeway:        30 * time.Second,
			MaxFutureIAT:  30 * time.Second,
		},
		Password: PasswordConfig{
			Cost:           12,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  2 * time.Hour,
		},
		OTP: OTPConfig{
			Digits:       6,
			TTL:          10 * time.Minute,
			MaxAttempts:  3,
			Retention:    30 * time.Minute,
			StoreTimeout: 2 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:    "ra",
			RefreshTTL:     7 * 24 * time.Hour,
			UsageLimit:     100,
			Retention:      24 * time.Hour,
			StoreTimeout:   2 * time.Second,
			ReaperInterval: 10 * time.Minute,
		},
		Rate: RateConfig{
			EnableIPThrottle:    true,
			EnableOTPThrottle:   true,
			EnableRefreshLimits: true,
			MaxLoginAttempts:    10,
			LoginCooldown:       15 * time.Minute,
			MaxOTPIssues:        5,
			OTPIssueCooldown:    15 * time.Minute,
			MaxRefreshAttempts:  20,
			RefreshCooldown:     time.Minute,
		},
		Account: AccountConfig{
			DefaultRole: RolePatient,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the configuration the engine runs with when the
// builder is given nothing else.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
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
NORMALIZATION / VALIDATION
====================================
*/

// Normalize fills zero-valued fields with defaults. It does not touch
// explicitly set values.
func (c *Config) Normalize() {
	def := defaultConfig()

	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if c.JWT.SigningMethod == "" {
		c.JWT.SigningMethod = def.JWT.SigningMethod
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = def.JWT.Issuer
	}
	if c.JWT.Audience == "" {
		c.JWT.Audience = def.JWT.Audience
	}
	if c.Password.Cost == 0 {
		c.Password.Cost = def.Password.Cost
	}
	if c.Password.MinLength == 0 {
		c.Password.MinLength = def.Password.MinLength
	}
	if c.Lockout.Threshold == 0 {
		c.Lockout.Threshold = def.Lockout.Threshold
	}
	if c.Lockout.Duration == 0 {
		c.Lockout.Duration = def.Lockout.Duration
	}
	if c.OTP.Digits == 0 {
		c.OTP.Digits = def.OTP.Digits
	}
	if c.OTP.TTL == 0 {
		c.OTP.TTL = def.OTP.TTL
	}
	if c.OTP.MaxAttempts == 0 {
		c.OTP.MaxAttempts = def.OTP.MaxAttempts
	}
	if c.OTP.Retention == 0 {
		c.OTP.Retention = def.OTP.Retention
	}
	if c.OTP.StoreTimeout == 0 {
		c.OTP.StoreTimeout = def.OTP.StoreTimeout
	}
	if c.Session.RedisPrefix == "" {
		c.Session.RedisPrefix = def.Session.RedisPrefix
	}
	if c.Session.RefreshTTL == 0 {
		c.Session.RefreshTTL = def.Session.RefreshTTL
	}
	if c.Session.UsageLimit == 0 {
		c.Session.UsageLimit = def.Session.UsageLimit
	}
	if c.Session.Retention == 0 {
		c.Session.Retention = def.Session.Retention
	}
	if c.Session.StoreTimeout == 0 {
		c.Session.StoreTimeout = def.Session.StoreTimeout
	}
	if c.Account.DefaultRole == "" {
		c.Account.DefaultRole = def.Account.DefaultRole
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
}

// Validate reports the first configuration problem found, or nil.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != jwt.MethodEd25519 && c.JWT.SigningMethod != jwt.MethodHS256 {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT private key is required")
	}
	if c.JWT.SigningMethod == jwt.MethodEd25519 && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 signing requires a public key")
	}
	if c.JWT.AccessTTL >= c.Session.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}

	if c.Password.Cost < 10 || c.Password.Cost > 16 {
		return errors.New("bcrypt cost out of range [10,16]")
	}
	if c.Password.MinLength < 8 {
		return errors.New("password minimum length must be at least 8")
	}

	if c.Lockout.Threshold < 1 {
		return errors.New("lockout threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be > 0")
	}

	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("otp digits out of range [4,10]")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("otp TTL must be > 0")
	}
	if c.OTP.MaxAttempts < 1 {
		return errors.New("otp attempt cap must be >= 1")
	}

	if c.Session.RefreshTTL <= 0 {
		return errors.New("refresh TTL must be > 0")
	}
	if c.Session.UsageLimit < 1 {
		return errors.New("session usage limit must be >= 1")
	}
	if c.Session.Retention < 0 {
		return errors.New("session retention must be >= 0")
	}

	if c.Account.DefaultRole != "" && !ValidRole(c.Account.DefaultRole) {
		return errors.New("invalid default role")
	}

	return nil
}
