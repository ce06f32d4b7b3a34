package warden

import (
	"errors"
	"time"

	"github.com/MrEthical07/warden/password"
)

// Config is the full engine configuration. It is copied at Build time and
// never mutated afterwards.
type Config struct {
	Token      TokenConfig      `yaml:"token"`
	Password   PasswordConfig   `yaml:"password"`
	Store      StoreConfig      `yaml:"store"`
	Revocation RevocationConfig `yaml:"revocation"`
	Redis      RedisConfig      `yaml:"redis"`
	Security   SecurityConfig   `yaml:"security"`
	Audit      AuditConfig      `yaml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls session token issuance. Key material is never read
// from YAML; it comes from PrivateKeyFile or the environment.
type TokenConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	MaxTTL         time.Duration `yaml:"max_ttl"`
	Leeway         time.Duration `yaml:"leeway"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	SigningMethod  string        `yaml:"signing_method"` // "ed25519" (default) or "hs256"
	KeyID          string        `yaml:"key_id"`
	PrivateKeyFile string        `yaml:"private_key_file"`

	PrivateKey []byte            `yaml:"-"`
	VerifyKeys map[string][]byte `yaml:"-"` // retired keys by kid
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id work factor and the strength policy
// applied on registration.
type PasswordConfig struct {
	Memory      uint32 `yaml:"memory"` // KiB
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`

	MinLength int    `yaml:"min_length"`
	Symbols   string `yaml:"symbols"`

	// UpgradeOnLogin rehashes a password whose stored hash uses weaker
	// parameters than the current ones, after a successful login.
	UpgradeOnLogin bool `yaml:"upgrade_on_login"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig describes the account database. DSN selects the dialect:
// postgres:// URLs use PostgreSQL, anything else is a SQLite path.
type StoreConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationBackend names a revocation registry implementation.
type RevocationBackend string

const (
	RevocationMemory RevocationBackend = "memory"
	RevocationRedis  RevocationBackend = "redis"
	RevocationGORM   RevocationBackend = "gorm"
)

// RevocationConfig selects and tunes the revocation registry.
type RevocationConfig struct {
	Backend       RevocationBackend `yaml:"backend"`
	RedisPrefix   string            `yaml:"redis_prefix"`
	SweepInterval time.Duration     `yaml:"sweep_interval"` // 0 disables the background sweeper
	SweepTimeout  time.Duration     `yaml:"sweep_timeout"`
}

/*
====================================
REDIS CONFIG
====================================
*/

// RedisConfig is used only when the builder is not given a client.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls the login throttle. The throttle needs Redis.
type SecurityConfig struct {
	EnableLoginThrottle bool          `yaml:"enable_login_throttle"`
	EnableIPThrottle    bool          `yaml:"enable_ip_throttle"`
	MaxLoginAttempts    int           `yaml:"max_login_attempts"`
	LoginCooldown       time.Duration `yaml:"login_cooldown"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous audit delivery. When KafkaBrokers is
// set and no sink was supplied to the builder, events go to KafkaTopic.
type AuditConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BufferSize   int           `yaml:"buffer_size"`
	DropIfFull   bool          `yaml:"drop_if_full"`
	DrainTimeout time.Duration `yaml:"drain_timeout"` // bound on delivering buffered events at Close
	KafkaBrokers []string      `yaml:"kafka_brokers"`
	KafkaTopic   string        `yaml:"kafka_topic"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with production defaults and no
// key material.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	policy := password.DefaultPolicy()

	return Config{
		Token: TokenConfig{
			TTL:           15 * time.Minute,
			MaxTTL:        24 * time.Hour,
			SigningMethod: "ed25519",
			KeyID:         "primary",
		},
		Password: PasswordConfig{
			Memory:      pw.Memory,
			Time:        pw.Time,
			Parallelism: pw.Parallelism,
			SaltLength:  pw.SaltLength,
			KeyLength:   pw.KeyLength,
			MinLength:   policy.MinLength,
			Symbols:     policy.Symbols,

			UpgradeOnLogin: true,
		},
		Store: StoreConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			RetryDelay:      50 * time.Millisecond,
		},
		Revocation: RevocationConfig{
			Backend:       RevocationMemory,
			RedisPrefix:   "warden:rev",
			SweepInterval: time.Minute,
			SweepTimeout:  10 * time.Second,
		},
		Security: SecurityConfig{
			EnableLoginThrottle: false,
			EnableIPThrottle:    false,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:      false,
			BufferSize:   1024,
			DropIfFull:   true,
			DrainTimeout: 5 * time.Second,
			KafkaTopic:   "warden.audit",
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	if cfg.Token.VerifyKeys != nil {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Audit.KafkaBrokers = append([]string(nil), cfg.Audit.KafkaBrokers...)
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

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

func (c PasswordConfig) policy() password.Policy {
	p := password.DefaultPolicy()
	if c.MinLength > 0 {
		p.MinLength = c.MinLength
	}
	if c.Symbols != "" {
		p.Symbols = c.Symbols
	}
	return p
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Key material is checked when
// the engine is built.
func (c *Config) Validate() error {
	// Token
	if c.Token.TTL < time.Second {
		return errors.New("Token TTL must be >= 1s")
	}
	if c.Token.MaxTTL < c.Token.TTL {
		return errors.New("Token MaxTTL must be >= TTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}
	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported token signing method")
	}
	if c.Token.KeyID == "" {
		return errors.New("Token KeyID must be set")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}

	// Store
	if c.Store.RetryDelay < 0 {
		return errors.New("Store RetryDelay must be >= 0")
	}

	// Revocation
	switch c.Revocation.Backend {
	case RevocationMemory, RevocationRedis, RevocationGORM:
	default:
		return errors.New("Revocation Backend must be memory, redis or gorm")
	}
	if c.Revocation.SweepInterval < 0 {
		return errors.New("Revocation SweepInterval must be >= 0")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("Security LoginCooldown must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.DrainTimeout < 0 {
		return errors.New("Audit DrainTimeout must be >= 0")
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.KafkaTopic == "" {
		return errors.New("Audit KafkaTopic must be set when KafkaBrokers is")
	}

	return nil
}
