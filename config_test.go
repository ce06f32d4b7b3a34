package warden

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ttl below one second", func(c *Config) { c.Token.TTL = 500 * time.Millisecond }, "TTL"},
		{"max ttl below ttl", func(c *Config) { c.Token.MaxTTL = time.Minute }, "MaxTTL"},
		{"negative leeway", func(c *Config) { c.Token.Leeway = -time.Second }, "Leeway"},
		{"large leeway", func(c *Config) { c.Token.Leeway = time.Hour }, "Leeway"},
		{"unknown method", func(c *Config) { c.Token.SigningMethod = "rs256" }, "signing method"},
		{"empty key id", func(c *Config) { c.Token.KeyID = "" }, "KeyID"},
		{"tiny memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"zero time", func(c *Config) { c.Password.Time = 0 }, "Time"},
		{"zero parallelism", func(c *Config) { c.Password.Parallelism = 0 }, "Parallelism"},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }, "SaltLength"},
		{"short key", func(c *Config) { c.Password.KeyLength = 8 }, "KeyLength"},
		{"negative retry delay", func(c *Config) { c.Store.RetryDelay = -1 }, "RetryDelay"},
		{"unknown backend", func(c *Config) { c.Revocation.Backend = "etcd" }, "Backend"},
		{"negative sweep", func(c *Config) { c.Revocation.SweepInterval = -time.Second }, "SweepInterval"},
		{"throttle without attempts", func(c *Config) {
			c.Security.EnableLoginThrottle = true
			c.Security.MaxLoginAttempts = 0
		}, "MaxLoginAttempts"},
		{"throttle without cooldown", func(c *Config) {
			c.Security.EnableLoginThrottle = true
			c.Security.LoginCooldown = 0
		}, "LoginCooldown"},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
		{"negative drain timeout", func(c *Config) { c.Audit.DrainTimeout = -time.Second }, "DrainTimeout"},
		{"brokers without topic", func(c *Config) {
			c.Audit.KafkaBrokers = []string{"localhost:9092"}
			c.Audit.KafkaTopic = ""
		}, "KafkaTopic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "signing.key")
	require.NoError(t, os.WriteFile(keyFile, []byte(testSecret), 0o600))

	path := filepath.Join(dir, "warden.yaml")
	writeFile(t, path, `
token:
  ttl: 30m
  max_ttl: 12h
  issuer: warden-test
  signing_method: hs256
  key_id: k1
  private_key_file: `+keyFile+`
password:
  memory: 16384
  time: 2
  min_length: 12
revocation:
  backend: redis
  sweep_interval: 0s
redis:
  addr: localhost:6380
  db: 2
security:
  enable_login_throttle: true
  max_login_attempts: 3
audit:
  enabled: true
  kafka_brokers: [a:9092, b:9092]
  kafka_topic: auth.events
`)

	cfg, err := LoadConfig(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Token.TTL)
	assert.Equal(t, 12*time.Hour, cfg.Token.MaxTTL)
	assert.Equal(t, "warden-test", cfg.Token.Issuer)
	assert.Equal(t, []byte(testSecret), cfg.Token.PrivateKey)
	assert.Equal(t, uint32(16384), cfg.Password.Memory)
	assert.Equal(t, 12, cfg.Password.MinLength)
	assert.Equal(t, RevocationRedis, cfg.Revocation.Backend)
	assert.Zero(t, cfg.Revocation.SweepInterval)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 3, cfg.Security.MaxLoginAttempts)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Audit.KafkaBrokers)
	assert.Equal(t, "auth.events", cfg.Audit.KafkaTopic)

	// untouched sections keep their defaults
	assert.Equal(t, "warden:rev", cfg.Revocation.RedisPrefix)
	assert.Equal(t, 15*time.Minute, cfg.Security.LoginCooldown)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WARDEN_TOKEN_ISSUER", "env-issuer")
	t.Setenv("WARDEN_TOKEN_SIGNING_METHOD", "HS256")
	t.Setenv("WARDEN_TOKEN_PRIVATE_KEY", testSecret)
	t.Setenv("WARDEN_TOKEN_TTL", "5m")
	t.Setenv("WARDEN_REVOCATION_BACKEND", "GORM")
	t.Setenv("WARDEN_REDIS_PASSWORD", "hunter2")
	t.Setenv("WARDEN_SECURITY_LOGIN_THROTTLE", "true")
	t.Setenv("WARDEN_AUDIT_KAFKA_BROKERS", " k1:9092, ,k2:9092 ")

	cfg, err := LoadConfig("", filepath.Join(dir, "none.env"))
	require.NoError(t, err)

	assert.Equal(t, "env-issuer", cfg.Token.Issuer)
	assert.Equal(t, "hs256", cfg.Token.SigningMethod)
	assert.Equal(t, []byte(testSecret), cfg.Token.PrivateKey)
	assert.Equal(t, 5*time.Minute, cfg.Token.TTL)
	assert.Equal(t, RevocationGORM, cfg.Revocation.Backend)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.True(t, cfg.Security.EnableLoginThrottle)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.KafkaBrokers)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	writeFile(t, envFile, "WARDEN_TOKEN_AUDIENCE=from-file\nWARDEN_REDIS_DB=4\n")
	t.Cleanup(func() {
		os.Unsetenv("WARDEN_TOKEN_AUDIENCE")
		os.Unsetenv("WARDEN_REDIS_DB")
	})

	cfg, err := LoadConfig("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Token.Audience)
	assert.Equal(t, 4, cfg.Redis.DB)
}

func TestLoadConfigProcessEnvBeatsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	writeFile(t, envFile, "WARDEN_TOKEN_KEY_ID=from-file\n")
	t.Setenv("WARDEN_TOKEN_KEY_ID", "from-process")

	cfg, err := LoadConfig("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-process", cfg.Token.KeyID)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	noEnv := filepath.Join(dir, "none.env")

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "absent.yaml"), noEnv)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		writeFile(t, path, "token: [unclosed\n")
		_, err := LoadConfig(path, noEnv)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config file")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("WARDEN_TOKEN_MAX_TTL", "forever")
		_, err := LoadConfig("", noEnv)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WARDEN_TOKEN_MAX_TTL")
	})

	t.Run("bad redis db", func(t *testing.T) {
		t.Setenv("WARDEN_REDIS_DB", "two")
		_, err := LoadConfig("", noEnv)
		require.Error(t, err)
	})

	t.Run("missing key file", func(t *testing.T) {
		t.Setenv("WARDEN_TOKEN_PRIVATE_KEY_FILE", filepath.Join(dir, "nokey"))
		_, err := LoadConfig("", noEnv)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading token key")
	})

	t.Run("invalid result", func(t *testing.T) {
		t.Setenv("WARDEN_TOKEN_TTL", "100ms")
		_, err := LoadConfig("", noEnv)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "validating config"))
	})
}

func TestCloneConfigDeepCopiesSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = []byte("secret-material-0123456789abcdef")
	cfg.Token.VerifyKeys = map[string][]byte{"old": []byte("retired")}
	cfg.Audit.KafkaBrokers = []string{"a:9092"}

	out := cloneConfig(cfg)
	cfg.Token.PrivateKey[0] = 'X'
	cfg.Token.VerifyKeys["old"][0] = 'X'
	cfg.Audit.KafkaBrokers[0] = "changed"

	assert.Equal(t, byte('s'), out.Token.PrivateKey[0])
	assert.Equal(t, byte('r'), out.Token.VerifyKeys["old"][0])
	assert.Equal(t, "a:9092", out.Audit.KafkaBrokers[0])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
