package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// Algorithm is the tag written into every encoded hash.
	Algorithm = "argon2id"
)

// ErrMalformedHash is returned when a stored hash cannot be decoded.
var ErrMalformedHash = errors.New("malformed password hash")

// Config holds the Argon2id work factor. Higher Memory and Time make each
// hash (and each brute-force guess) proportionally more expensive.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production work factor.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hash is a decoded credential hash.
type Hash struct {
	Algorithm   string
	Version     int
	Memory      uint32
	Time        uint32
	Parallelism uint8
	Salt        []byte
	Digest      []byte
}

// String encodes h in PHC string format.
func (h Hash) String() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.Algorithm,
		h.Version,
		h.Memory,
		h.Time,
		h.Parallelism,
		base64.StdEncoding.EncodeToString(h.Salt),
		base64.StdEncoding.EncodeToString(h.Digest),
	)
}

// Argon2 hashes and verifies passwords. It is immutable after construction
// and safe for concurrent use.
type Argon2 struct {
	config Config
	policy Policy
}

// NewArgon2 validates cfg and returns a hasher enforcing policy on Hash.
func NewArgon2(cfg Config, policy Policy) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg, policy: policy}, nil
}

// Policy returns the policy enforced by Hash.
func (a *Argon2) Policy() Policy {
	return a.policy
}

// Hash checks plaintext against the policy, then derives a digest with a
// fresh random salt. Two calls with the same plaintext never return the same
// string.
func (a *Argon2) Hash(plaintext string) (string, error) {
	if err := a.policy.Check(plaintext); err != nil {
		return "", err
	}
	return a.hash(plaintext)
}

// HashUnchecked derives a hash without applying the policy. The engine uses
// it for the decoy hash that unknown-account logins are verified against,
// and to rehash an already accepted password under a stronger work factor.
func (a *Argon2) HashUnchecked(plaintext string) (string, error) {
	return a.hash(plaintext)
}

func (a *Argon2) hash(plaintext string) (string, error) {
	// Raw string bytes are hashed exactly as provided (no Unicode normalization).
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	digest := argon2.IDKey(
		[]byte(plaintext),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return Hash{
		Algorithm:   Algorithm,
		Version:     argon2.Version,
		Memory:      a.config.Memory,
		Time:        a.config.Time,
		Parallelism: a.config.Parallelism,
		Salt:        salt,
		Digest:      digest,
	}.String(), nil
}

// Verify recomputes the digest of plaintext with the salt and parameters
// stored in encoded and compares in constant time.
func (a *Argon2) Verify(plaintext string, encoded string) (bool, error) {
	h, err := Parse(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(plaintext),
		h.Salt,
		h.Time,
		h.Memory,
		h.Parallelism,
		uint32(len(h.Digest)),
	)

	return subtle.ConstantTimeCompare(computed, h.Digest) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := Parse(encoded)
	if err != nil {
		return false, err
	}

	if a.config.Memory > h.Memory {
		return true, nil
	}
	if a.config.Time > h.Time {
		return true, nil
	}
	if a.config.Parallelism > h.Parallelism {
		return true, nil
	}
	if a.config.KeyLength != uint32(len(h.Digest)) {
		return true, nil
	}

	return false, nil
}

// Parse decodes a PHC-formatted Argon2id hash.
func Parse(encoded string) (Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Hash{}, fmt.Errorf("%w: invalid PHC format", ErrMalformedHash)
	}

	if parts[1] != Algorithm {
		return Hash{}, fmt.Errorf("%w: unsupported algorithm", ErrMalformedHash)
	}

	versionPart := parts[2]
	if !strings.HasPrefix(versionPart, "v=") {
		return Hash{}, fmt.Errorf("%w: missing argon2 version", ErrMalformedHash)
	}
	version, err := strconv.Atoi(strings.TrimPrefix(versionPart, "v="))
	if err != nil || version != argon2.Version {
		return Hash{}, fmt.Errorf("%w: unsupported argon2 version", ErrMalformedHash)
	}

	h := Hash{Algorithm: Algorithm, Version: version}
	if err := parseParams(parts[3], &h); err != nil {
		return Hash{}, err
	}

	h.Salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(h.Salt) < int(minSaltLength) {
		return Hash{}, fmt.Errorf("%w: invalid salt", ErrMalformedHash)
	}

	h.Digest, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(h.Digest) == 0 {
		return Hash{}, fmt.Errorf("%w: invalid digest", ErrMalformedHash)
	}

	return h, nil
}

func parseParams(part string, h *Hash) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return fmt.Errorf("%w: invalid parameter format", ErrMalformedHash)
	}

	var memorySet, timeSet, parallelismSet bool
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: invalid parameter entry", ErrMalformedHash)
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return fmt.Errorf("%w: invalid memory parameter", ErrMalformedHash)
			}
			h.Memory = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return fmt.Errorf("%w: invalid time parameter", ErrMalformedHash)
			}
			h.Time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return fmt.Errorf("%w: invalid parallelism parameter", ErrMalformedHash)
			}
			h.Parallelism = uint8(v)
			parallelismSet = true
		default:
			return fmt.Errorf("%w: unsupported parameter", ErrMalformedHash)
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
