package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrWeakPassword is returned (wrapped in a *PolicyError) when a plaintext
// does not satisfy the configured Policy. It is reported before any hashing.
var ErrWeakPassword = errors.New("weak password")

// DefaultSymbols is the fixed punctuation set a password must draw at least
// one character from.
const DefaultSymbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

const (
	defaultMinLength = 8
	defaultMaxBytes  = 1024
)

// Policy describes the character-class rules a new password must satisfy.
//
// Policy values are plain data and safe to share between goroutines.
type Policy struct {
	MinLength     int // in runes
	MaxBytes      int
	RequireLetter bool
	RequireDigit  bool
	RequireSymbol bool
	Symbols       string
}

// DefaultPolicy returns the policy used by the engine unless overridden:
// at least 8 characters with one letter, one digit and one symbol from
// DefaultSymbols.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     defaultMinLength,
		MaxBytes:      defaultMaxBytes,
		RequireLetter: true,
		RequireDigit:  true,
		RequireSymbol: true,
		Symbols:       DefaultSymbols,
	}
}

// PolicyError lists every rule a rejected password failed. It matches
// ErrWeakPassword under errors.Is.
type PolicyError struct {
	Unmet []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrWeakPassword.Error(), strings.Join(e.Unmet, "; "))
}

// Is reports whether target is ErrWeakPassword.
func (e *PolicyError) Is(target error) bool {
	return target == ErrWeakPassword
}

// Check validates plaintext against the policy. The plaintext is never
// included in the returned error.
func (p Policy) Check(plaintext string) error {
	var unmet []string

	if p.MinLength > 0 && utf8.RuneCountInString(plaintext) < p.MinLength {
		unmet = append(unmet, fmt.Sprintf("must be at least %d characters long", p.MinLength))
	}
	if p.MaxBytes > 0 && len(plaintext) > p.MaxBytes {
		unmet = append(unmet, fmt.Sprintf("must be at most %d bytes long", p.MaxBytes))
	}

	var hasLetter, hasDigit, hasSymbol bool
	symbols := p.Symbols
	if symbols == "" {
		symbols = DefaultSymbols
	}
	for _, r := range plaintext {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(symbols, r):
			hasSymbol = true
		}
	}

	if p.RequireLetter && !hasLetter {
		unmet = append(unmet, "must contain at least one letter")
	}
	if p.RequireDigit && !hasDigit {
		unmet = append(unmet, "must contain at least one digit")
	}
	if p.RequireSymbol && !hasSymbol {
		unmet = append(unmet, "must contain at least one special character")
	}

	if len(unmet) > 0 {
		return &PolicyError{Unmet: unmet}
	}
	return nil
}
