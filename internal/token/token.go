// Package token implements the signed capability token that binds a client to
// a user record. Tokens are HMAC-signed JWTs carrying the user id and issue
// time; verification rejects bad signatures and tokens older than the TTL.
//
// This is an alternate identification channel coexisting with the opaque
// session id, kept for the legacy lookup endpoints. It is not a session
// replacement.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the capability token lifetime.
const DefaultTTL = 30 * 24 * time.Hour

// ErrInvalid is returned when a token fails signature or claim validation,
// including expiry.
var ErrInvalid = errors.New("invalid token")

// Codec issues and verifies user tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec returns a Codec signing with secret. A ttl <= 0 falls back to
// DefaultTTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl}
}

type userClaims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// Issue signs a token for userID valid for the configured TTL.
func (c *Codec) Issue(userID uint) (string, error) {
	now := time.Now().UTC()
	claims := userClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify recomputes the signature for raw and returns the bound user id.
// Expired or tampered tokens return ErrInvalid.
func (c *Codec) Verify(raw string) (uint, error) {
	var claims userClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalid
		}
		return c.secret, nil
	})
	if err != nil || !tok.Valid || claims.UserID == 0 {
		return 0, ErrInvalid
	}
	return claims.UserID, nil
}
