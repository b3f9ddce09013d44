// Package auth issues and verifies the bearer credentials that gate session
// joins and ledger writes. The credential is a signed JWT whose subject is
// the caller's wallet address; the address itself comes from an external
// wallet and is opaque here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthError wraps credential acquisition and verification failures. It is
// surfaced distinctly from storage/ledger errors so the user-facing layer
// can tell "log in again" apart from "save failed".
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth %s: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// Issuer produces a bearer credential for the local user.
type Issuer interface {
	AcquireCredential(ctx context.Context) (string, error)
}

// Signer issues and verifies session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a token for the given wallet address.
func (s *Signer) Issue(address string) (string, error) {
	if address == "" {
		return "", &AuthError{Op: "issue", Err: errors.New("empty address")}
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", &AuthError{Op: "issue", Err: err}
	}
	return signed, nil
}

// Verify checks the token and returns the wallet address it was issued to.
func (s *Signer) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", &AuthError{Op: "verify", Err: err}
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", &AuthError{Op: "verify", Err: errors.New("missing subject")}
	}
	return claims.Subject, nil
}
