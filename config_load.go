package warden

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if
// path is non-empty), loads envFiles (".env" when none are given; missing
// files are ignored) and finally applies WARDEN_* environment overrides.
// The result is validated.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Token.PrivateKeyFile != "" && len(cfg.Token.PrivateKey) == 0 {
		key, err := os.ReadFile(cfg.Token.PrivateKeyFile)
		if err != nil {
			return Config{}, fmt.Errorf("reading token key: %w", err)
		}
		cfg.Token.PrivateKey = key
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides reads WARDEN_SECTION_KEY variables. Secrets (signing
// key, Redis password, DSN) are only ever expected here.
func applyEnvOverrides(cfg *Config) error {
	// Token
	if v := os.Getenv("WARDEN_TOKEN_ISSUER"); v != "" {
		cfg.Token.Issuer = v
	}
	if v := os.Getenv("WARDEN_TOKEN_AUDIENCE"); v != "" {
		cfg.Token.Audience = v
	}
	if v := os.Getenv("WARDEN_TOKEN_SIGNING_METHOD"); v != "" {
		cfg.Token.SigningMethod = strings.ToLower(v)
	}
	if v := os.Getenv("WARDEN_TOKEN_KEY_ID"); v != "" {
		cfg.Token.KeyID = v
	}
	if v := os.Getenv("WARDEN_TOKEN_PRIVATE_KEY"); v != "" {
		cfg.Token.PrivateKey = []byte(v)
	}
	if v := os.Getenv("WARDEN_TOKEN_PRIVATE_KEY_FILE"); v != "" {
		cfg.Token.PrivateKeyFile = v
	}
	if err := envDuration("WARDEN_TOKEN_TTL", &cfg.Token.TTL); err != nil {
		return err
	}
	if err := envDuration("WARDEN_TOKEN_MAX_TTL", &cfg.Token.MaxTTL); err != nil {
		return err
	}

	// Store
	if v := os.Getenv("WARDEN_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}

	// Revocation
	if v := os.Getenv("WARDEN_REVOCATION_BACKEND"); v != "" {
		cfg.Revocation.Backend = RevocationBackend(strings.ToLower(v))
	}
	if err := envDuration("WARDEN_REVOCATION_SWEEP_INTERVAL", &cfg.Revocation.SweepInterval); err != nil {
		return err
	}

	// Redis
	if v := os.Getenv("WARDEN_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("WARDEN_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("WARDEN_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WARDEN_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}

	// Security
	if v := os.Getenv("WARDEN_SECURITY_LOGIN_THROTTLE"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WARDEN_SECURITY_LOGIN_THROTTLE: %w", err)
		}
		cfg.Security.EnableLoginThrottle = on
	}

	// Audit
	if v := os.Getenv("WARDEN_AUDIT_KAFKA_BROKERS"); v != "" {
		cfg.Audit.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("WARDEN_AUDIT_KAFKA_TOPIC"); v != "" {
		cfg.Audit.KafkaTopic = v
	}

	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
