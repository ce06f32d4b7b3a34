package warden

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/MrEthical07/warden/accounts"
	"github.com/MrEthical07/warden/internal/rate"
	"github.com/MrEthical07/warden/password"
	"github.com/MrEthical07/warden/revocation"
	"github.com/MrEthical07/warden/token"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, then use only the Engine.
type Builder struct {
	config Config

	store    accounts.Store
	db       *gorm.DB
	registry revocation.Registry
	redis    redis.UniversalClient
	keys     *token.KeySet

	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. It takes precedence over WithDB for
// account storage.
func (b *Builder) WithStore(store accounts.Store) *Builder {
	b.store = store
	return b
}

// WithDB supplies a GORM handle. It backs the account store when WithStore
// is not used, and the revocation registry when the backend is "gorm".
func (b *Builder) WithDB(db *gorm.DB) *Builder {
	b.db = db
	return b
}

// WithRegistry overrides the configured revocation backend.
func (b *Builder) WithRegistry(registry revocation.Registry) *Builder {
	b.registry = registry
	return b
}

// WithRedis supplies the client used by the Redis revocation backend and the
// login throttle. The engine does not close a client it was given.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKeySet supplies signing keys directly instead of Config.Token.
func (b *Builder) WithKeySet(keys *token.KeySet) *Builder {
	b.keys = keys
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for token timestamps, revocation cutoffs and
// audit events.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and constructs the engine. On failure
// every resource Build opened is released.
func (b *Builder) Build() (engine *Engine, err error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()

	// -------- ACCOUNT STORE --------
	store := b.store
	if store == nil {
		if b.db == nil {
			return nil, errors.New("account store or database required")
		}
		store = accounts.NewGormStore(b.db, accounts.StoreConfig{RetryDelay: cfg.Store.RetryDelay})
	}

	// -------- REDIS --------
	rdb := b.redis
	if rdb == nil && cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, client)
		rdb = client
	}

	// -------- REVOCATION REGISTRY --------
	registry := b.registry
	if registry == nil {
		switch cfg.Revocation.Backend {
		case RevocationMemory:
			registry = revocation.NewMemory(clock)
		case RevocationRedis:
			if rdb == nil {
				return nil, errors.New("redis revocation backend requires a redis client")
			}
			registry = revocation.NewRedis(rdb, cfg.Revocation.RedisPrefix)
		case RevocationGORM:
			if b.db == nil {
				return nil, errors.New("gorm revocation backend requires a database")
			}
			if err := b.db.AutoMigrate(revocation.Models()...); err != nil {
				return nil, fmt.Errorf("migrate revocation tables: %w", err)
			}
			registry = revocation.NewGORM(b.db)
		}
	}

	// -------- TOKEN AUTHORITY --------
	keys := b.keys
	if keys == nil {
		if len(cfg.Token.PrivateKey) == 0 {
			return nil, errors.New("token signing key required")
		}
		keys, err = token.NewKeySet(token.KeySetConfig{
			Method:     token.SigningMethod(cfg.Token.SigningMethod),
			KeyID:      cfg.Token.KeyID,
			PrivateKey: cfg.Token.PrivateKey,
			VerifyKeys: cfg.Token.VerifyKeys,
		})
		if err != nil {
			return nil, err
		}
	}

	authority, err := token.NewAuthority(token.Config{
		Keys:        keys,
		Issuer:      cfg.Token.Issuer,
		Audience:    cfg.Token.Audience,
		Leeway:      cfg.Token.Leeway,
		DefaultTTL:  cfg.Token.TTL,
		MaxTTL:      cfg.Token.MaxTTL,
		Now:         clock,
		Revocations: registry,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewArgon2(cfg.Password.hasherConfig(), cfg.Password.policy())
	if err != nil {
		return nil, err
	}
	dummyHash, err := newDummyHash(hasher)
	if err != nil {
		return nil, err
	}

	engine = &Engine{
		config:    cfg,
		store:     store,
		hasher:    hasher,
		dummyHash: dummyHash,
		tokens:    authority,
		registry:  registry,
		logger:    logger,
		now:       clock,
		metrics:   NewMetrics(cfg.Metrics),
	}

	// -------- LOGIN THROTTLE --------
	if cfg.Security.EnableLoginThrottle {
		if rdb == nil {
			return nil, errors.New("login throttle requires a redis client")
		}
		engine.limiter = rate.New(rdb, rate.Config{
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxAttempts:      cfg.Security.MaxLoginAttempts,
			Window:           cfg.Security.LoginCooldown,
		})
	}

	// -------- AUDIT --------
	dispatcher, kafkaWriter := newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.audit = dispatcher
	if kafkaWriter != nil {
		closers = append(closers, kafkaWriter)
	}

	// -------- SWEEPER --------
	if cfg.Revocation.SweepInterval > 0 {
		metrics := engine.metrics
		engine.sweeper = revocation.NewSweeper(registry, revocation.SweeperConfig{
			Interval: cfg.Revocation.SweepInterval,
			Timeout:  cfg.Revocation.SweepTimeout,
			Now:      clock,
			Logger:   logger,
			OnSweep: func(removed int, err error) {
				if err != nil {
					metrics.Inc(MetricBackendUnavailable)
					return
				}
				metrics.Add(MetricRevocationSwept, uint64(removed))
			},
		})
	}

	engine.closers = closers
	b.built = true

	return engine, nil
}

// newDummyHash hashes a random secret with the live work factor. Logins for
// unknown names are verified against it so they cost the same as a wrong
// password for a real account.
func newDummyHash(hasher *password.Argon2) (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return hasher.HashUnchecked(hex.EncodeToString(secret))
}
