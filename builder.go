package rapidauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/shrimay18/rapidcare-auth/internal/audit"
	"github.com/shrimay18/rapidcare-auth/internal/rate"
	"github.com/shrimay18/rapidcare-auth/jwt"
	"github.com/shrimay18/rapidcare-auth/password"
	"github.com/shrimay18/rapidcare-auth/session"
)

// Builder assembles an [Engine]. A Builder is single-use: Build can be
// called once, after which the builder is spent.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	provider AccountProvider
	notifier Notifier
	sink     AuditSink

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration. The config is copied;
// later mutations of cfg do not affect the built engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, one-time codes, and rate
// limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountProvider sets the account backend. Required.
func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.provider = p
	return b
}

// WithNotifier sets the one-time code delivery channel. Optional; without it
// IssueOTP returns codes to the caller only.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink enables audit dispatch to the given sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles in-process metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Validate latency histogram. Implies
// metrics being enabled to have any effect.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build normalizes and validates the configuration, wires every component,
// and returns a ready [Engine]. The background session reaper is not
// started; call [Engine.StartReaper] once the process is ready to run it.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("account provider required")
	}

	cfg := cloneConfig(b.config)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Cost: cfg.Password.Cost,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: cfg.JWT.SigningMethod,
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Session.RedisPrefix
	engine := &Engine{
		config:   cfg,
		provider: b.provider,
		notifier: b.notifier,
		hasher:   hasher,
		sessions: session.NewStore(
			b.redis,
			prefix,
			cfg.Session.Retention,
			cfg.Session.StoreTimeout,
		),
		otps: newOTPStore(
			b.redis,
			prefix,
			cfg.OTP.Retention,
			cfg.OTP.StoreTimeout,
		),
		rateLimiter: rate.New(b.redis, rate.Config{
			EnableIPThrottle:    cfg.Rate.EnableIPThrottle,
			EnableOTPThrottle:   cfg.Rate.EnableOTPThrottle,
			EnableRefreshLimits: cfg.Rate.EnableRefreshLimits,
			MaxLoginAttempts:    cfg.Rate.MaxLoginAttempts,
			LoginCooldown:       cfg.Rate.LoginCooldown,
			MaxOTPIssues:        cfg.Rate.MaxOTPIssues,
			OTPIssueCooldown:    cfg.Rate.OTPIssueCooldown,
			MaxRefreshAttempts:  cfg.Rate.MaxRefreshAttempts,
			RefreshCooldown:     cfg.Rate.RefreshCooldown,
		}),
		jwtManager: jm,
		metrics:    NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.sink),
	}

	b.built = true

	return engine, nil
}
