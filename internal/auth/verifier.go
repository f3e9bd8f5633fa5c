package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid is returned when a token fails signature, expiry or
// claim validation.
var ErrTokenInvalid = errors.New("auth: invalid token")

// Verifier checks observer join tokens. Token issuance lives in the
// companion web backend; the hub only verifies signatures, so a stolen
// hub database leaks no signing capability beyond the shared secrets.
type Verifier struct {
	accessSecret  []byte
	refreshSecret []byte
}

// NewVerifier creates a verifier from the configured secrets.
func NewVerifier(accessSecret, refreshSecret string) *Verifier {
	return &Verifier{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}
}

// VerifyAccess validates an access token.
func (v *Verifier) VerifyAccess(token string) error {
	return verify(token, v.accessSecret)
}

// VerifyRefresh validates a refresh token.
func (v *Verifier) VerifyRefresh(token string) error {
	return verify(token, v.refreshSecret)
}

// VerifyAny accepts a join request carrying either a valid access
// token or a valid refresh token. The refresh fallback lets a
// dashboard with an expired access token join immediately while it
// refreshes over HTTP.
func (v *Verifier) VerifyAny(accessToken, refreshToken string) error {
	if accessToken != "" && v.VerifyAccess(accessToken) == nil {
		return nil
	}
	if refreshToken != "" && v.VerifyRefresh(refreshToken) == nil {
		return nil
	}
	return fmt.Errorf("%w: no usable access or refresh token", ErrTokenInvalid)
}

func verify(tokenString string, secret []byte) error {
	token, err := jwt.Parse(tokenString, func(_ *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
