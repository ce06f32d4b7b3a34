package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the JWS algorithm used by a KeySet.
type SigningMethod string

const (
	// MethodEd25519 signs with Ed25519 (JWS "EdDSA"). This is the default.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 using a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

const minHMACSecret = 32

// KeyLookup resolves the verification key for a kid header. Implementations
// must be safe for concurrent reads; the Authority never mutates them.
type KeyLookup interface {
	VerifyKey(kid string) (any, error)
}

// KeySetConfig describes the key material loaded once at process start.
//
// KeyID names the active signing key and is written into every token's kid
// header. VerifyKeys may carry public keys (or HMAC secrets) of retired ids
// so tokens signed before a rotation keep verifying.
type KeySetConfig struct {
	Method     SigningMethod
	KeyID      string
	PrivateKey []byte
	VerifyKeys map[string][]byte
}

// KeySet is an immutable set of signing and verification keys. It satisfies
// KeyLookup.
type KeySet struct {
	method  SigningMethod
	keyID   string
	signKey any
	verify  map[string]any
}

// NewKeySet validates cfg and decodes its key material. Ed25519 keys may be
// raw (64-byte private, 32-byte public) or PEM encoded.
func NewKeySet(cfg KeySetConfig) (*KeySet, error) {
	if cfg.Method == "" {
		cfg.Method = MethodEd25519
	}
	kid := strings.TrimSpace(cfg.KeyID)
	if kid == "" {
		return nil, errors.New("key id must not be empty")
	}

	ks := &KeySet{
		method: cfg.Method,
		keyID:  kid,
		verify: make(map[string]any, len(cfg.VerifyKeys)+1),
	}

	switch cfg.Method {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACSecret {
			return nil, fmt.Errorf("hs256 secret must be at least %d bytes", minHMACSecret)
		}
		secret := append([]byte(nil), cfg.PrivateKey...)
		ks.signKey = secret
		ks.verify[kid] = secret
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		ks.signKey = priv
		ks.verify[kid] = priv.Public().(ed25519.PublicKey)
	default:
		return nil, errors.New("unsupported signing method")
	}

	for id, raw := range cfg.VerifyKeys {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if id == kid {
			continue
		}
		key, err := ks.decodeVerifyKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid verify key for kid %q: %w", id, err)
		}
		ks.verify[id] = key
	}

	return ks, nil
}

// Method returns the signing method shared by every key in the set.
func (k *KeySet) Method() SigningMethod {
	return k.method
}

// KeyID returns the id of the active signing key.
func (k *KeySet) KeyID() string {
	return k.keyID
}

// VerifyKey returns the verification key registered for kid.
func (k *KeySet) VerifyKey(kid string) (any, error) {
	key, ok := k.verify[kid]
	if !ok {
		return nil, errors.New("unknown kid")
	}
	return key, nil
}

func (k *KeySet) jwtMethod() jwt.SigningMethod {
	if k.method == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (k *KeySet) decodeVerifyKey(raw []byte) (any, error) {
	if k.method == MethodHS256 {
		if len(raw) < minHMACSecret {
			return nil, fmt.Errorf("hs256 secret must be at least %d bytes", minHMACSecret)
		}
		return append([]byte(nil), raw...), nil
	}
	return parseEdPublicKey(raw)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	switch len(key) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(append([]byte(nil), key...)), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(append([]byte(nil), key...)), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
