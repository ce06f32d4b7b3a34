package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/warden/internal"
	"github.com/MrEthical07/warden/rbac"
)

const (
	defaultTTL = 15 * time.Minute
	defaultMax = 24 * time.Hour
	maxLeeway  = 2 * time.Minute

	// issued-at rounds down and expires-at rounds up, widening the encoded
	// lifetime by less than two seconds.
	roundingSlack = 2 * time.Second
)

// RevocationChecker is consulted synchronously on every Verify. A subject
// cutoff revokes every token for subject issued at or before the cutoff
// second; see package revocation.
type RevocationChecker interface {
	Revoked(ctx context.Context, tokenID, subject string, issuedAt time.Time) (bool, error)
}

// Config is the construction-time configuration of an Authority.
type Config struct {
	Keys *KeySet
	// Lookup overrides Keys for verification. Signing always uses Keys.
	Lookup KeyLookup

	Issuer   string
	Audience string
	Leeway   time.Duration

	DefaultTTL time.Duration
	MaxTTL     time.Duration

	Now         func() time.Time
	Revocations RevocationChecker
}

// Claims is the verified content of a session token.
type Claims struct {
	Subject   string
	Role      rbac.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token is an issued, signed session token.
type Token struct {
	Raw string
	Claims
}

type wireClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authority issues and verifies signed session tokens. It is immutable after
// construction and safe for concurrent use.
type Authority struct {
	keys        *KeySet
	lookup      KeyLookup
	issuer      string
	audience    string
	leeway      time.Duration
	defaultTTL  time.Duration
	maxTTL      time.Duration
	now         func() time.Time
	revocations RevocationChecker
	parser      *jwt.Parser
}

// NewAuthority validates cfg and returns an Authority.
func NewAuthority(cfg Config) (*Authority, error) {
	if cfg.Keys == nil {
		return nil, errors.New("token authority requires a key set")
	}
	if cfg.Revocations == nil {
		return nil, errors.New("token authority requires a revocation checker")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = defaultTTL
	}
	if cfg.MaxTTL == 0 {
		cfg.MaxTTL = defaultMax
	}
	if cfg.DefaultTTL < time.Second || cfg.MaxTTL < cfg.DefaultTTL {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Lookup == nil {
		cfg.Lookup = cfg.Keys
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	a := &Authority{
		keys:        cfg.Keys,
		lookup:      cfg.Lookup,
		issuer:      strings.TrimSpace(cfg.Issuer),
		audience:    strings.TrimSpace(cfg.Audience),
		leeway:      cfg.Leeway,
		defaultTTL:  cfg.DefaultTTL,
		maxTTL:      cfg.MaxTTL,
		now:         cfg.Now,
		revocations: cfg.Revocations,
	}

	// jwt rejects now == exp. The parser runs one second looser and Inspect
	// applies the exact expiry and issued-at bounds itself.
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{cfg.Keys.jwtMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithLeeway(a.leeway + time.Second),
	}
	if a.issuer != "" {
		options = append(options, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		options = append(options, jwt.WithAudience(a.audience))
	}
	a.parser = jwt.NewParser(options...)

	return a, nil
}

// DefaultTTL returns the lifetime used when callers have no preference.
func (a *Authority) DefaultTTL() time.Duration {
	return a.defaultTTL
}

// MaxTTL returns the longest lifetime Issue accepts. Tokens claiming a longer
// lifetime fail verification.
func (a *Authority) MaxTTL() time.Duration {
	return a.maxTTL
}

// RetainUntil returns the last instant a token expiring at expiresAt can
// still verify. A revocation entry must be kept at least that long.
func (a *Authority) RetainUntil(expiresAt time.Time) time.Time {
	return expiresAt.Add(a.leeway)
}

// CutoffRetainUntil is RetainUntil for a subject cutoff taken at cutoff: it
// outlives every token issued in or before the cutoff second.
func (a *Authority) CutoffRetainUntil(cutoff time.Time) time.Time {
	return a.RetainUntil(cutoff.Add(a.maxTTL + roundingSlack))
}

// Issue signs a token for accountID carrying role. Timestamps are encoded
// with second precision: issued-at rounds down and expires-at rounds up, so
// the encoded lifetime is never shorter than ttl. ttl must be at least one
// second.
func (a *Authority) Issue(accountID string, role rbac.Role, ttl time.Duration) (Token, error) {
	if strings.TrimSpace(accountID) == "" || !role.Valid() {
		return Token{}, ErrInvalidSubject
	}
	if ttl < time.Second || ttl > a.maxTTL {
		return Token{}, ErrInvalidTTL
	}

	id, err := internal.NewTokenID()
	if err != nil {
		return Token{}, fmt.Errorf("generate token id: %w", err)
	}

	now := a.now()
	issuedAt := now.Truncate(time.Second)
	expiresAt := ceilSecond(now.Add(ttl))

	claims := wireClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        id.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}

	tok := jwt.NewWithClaims(a.keys.jwtMethod(), claims)
	tok.Header["kid"] = a.keys.KeyID()

	raw, err := tok.SignedString(a.keys.signKey)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		Raw: raw,
		Claims: Claims{
			Subject:   accountID,
			Role:      role,
			TokenID:   id.String(),
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}, nil
}

// Verify checks signature, claims and expiry, then consults the revocation
// registry. The returned role is the one embedded at issuance; later role
// changes on the account do not affect it.
func (a *Authority) Verify(ctx context.Context, raw string) (Claims, error) {
	claims, err := a.Inspect(raw)
	if err != nil {
		return Claims{}, err
	}

	revoked, err := a.revocations.Revoked(ctx, claims.TokenID, claims.Subject, claims.IssuedAt)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}
	if revoked {
		return Claims{}, ErrRevokedToken
	}

	return claims, nil
}

// Inspect performs every check Verify does except the revocation lookup.
func (a *Authority) Inspect(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrMalformedToken
	}

	var wc wireClaims
	tok, err := a.parser.ParseWithClaims(raw, &wc, a.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if !tok.Valid {
		return Claims{}, ErrMalformedToken
	}

	role := rbac.Role(wc.Role)
	switch {
	case wc.Subject == "", wc.ID == "", wc.IssuedAt == nil, wc.ExpiresAt == nil:
		return Claims{}, fmt.Errorf("%w: missing claims", ErrMalformedToken)
	case !validTokenID(wc.ID):
		return Claims{}, fmt.Errorf("%w: invalid token id", ErrMalformedToken)
	case !role.Valid():
		return Claims{}, fmt.Errorf("%w: invalid role", ErrMalformedToken)
	}

	issuedAt := wc.IssuedAt.Time
	expiresAt := wc.ExpiresAt.Time
	if !expiresAt.After(issuedAt) || expiresAt.Sub(issuedAt) > a.maxTTL+roundingSlack {
		return Claims{}, fmt.Errorf("%w: invalid lifetime", ErrMalformedToken)
	}

	now := a.now()
	if issuedAt.After(now.Add(a.leeway)) {
		return Claims{}, fmt.Errorf("%w: issued in the future", ErrMalformedToken)
	}
	if now.After(expiresAt.Add(a.leeway)) {
		return Claims{}, ErrExpiredToken
	}

	return Claims{
		Subject:   wc.Subject,
		Role:      role,
		TokenID:   wc.ID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

func validTokenID(s string) bool {
	_, err := internal.ParseTokenID(s)
	return err == nil
}

// ceilSecond rounds t up to the next whole second.
func ceilSecond(t time.Time) time.Time {
	if down := t.Truncate(time.Second); !down.Equal(t) {
		return down.Add(time.Second)
	}
	return t
}

func (a *Authority) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != a.keys.jwtMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("missing kid")
	}
	return a.lookup.VerifyKey(kid)
}
