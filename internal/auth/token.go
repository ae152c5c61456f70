package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors for token verification. Callers branch on these with
// errors.Is to pick the rejection detail and decide whether to blacklist.
var (
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates a token that is malformed, has a bad
	// signature, or uses an unexpected algorithm.
	ErrTokenInvalid = errors.New("token invalid")
)

// Verifier validates signed access tokens against a shared HMAC secret.
type Verifier struct {
	secret    []byte
	algorithm string
}

// NewVerifier creates a Verifier. algorithm must be one of the HS* family;
// config validation guarantees this before the service starts.
func NewVerifier(secret, algorithm string) *Verifier {
	return &Verifier{secret: []byte(secret), algorithm: algorithm}
}

// Verify parses and validates token. It distinguishes expiry from every
// other failure so the caller can treat expired tokens as benign and all
// other failures as hostile.
func (v *Verifier) Verify(token string) error {
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.algorithm}))
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
}

// Sign issues a token for subject, expiring after ttl. Used by the token
// subcommand and by tests.
func (v *Verifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.GetSigningMethod(v.algorithm), claims).
		SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
