package creds

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired checks the token's exp claim without verifying the signature.
// The relay holds the signing key; this is only the client-side short-circuit
// that avoids dialing with a token the server is guaranteed to reject. A
// token that cannot be parsed at all counts as expired. A token without an
// exp claim is left for the server to judge.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
