// Package auth verifies doctor bearer tokens minted by an external
// collaborator. It never issues tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"roomcoordinator/pkg/interfaces"
	"roomcoordinator/pkg/types"
)

// claims is the compact signed envelope a token is expected to carry.
// FUNCTIONAL DISCOVERY: kind is a custom claim rather than a registered
// one; jwt.RegisteredClaims already covers id/exp/iat via Subject/ExpiresAt/IssuedAt.
type claims struct {
	Email string `json:"email"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

// JWTVerifier implements interfaces.TokenVerifier over a single symmetric
// secret configured at startup.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (interfaces.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return interfaces.Principal{}, types.NewError(types.KindUnauthenticated, "token expired")
		}
		return interfaces.Principal{}, types.WrapError(types.KindUnauthenticated, "invalid token", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return interfaces.Principal{}, types.NewError(types.KindUnauthenticated, "invalid token claims")
	}

	if c.Subject == "" {
		return interfaces.Principal{}, types.NewError(types.KindUnauthenticated, "token missing subject")
	}

	return interfaces.Principal{
		ID:    c.Subject,
		Email: c.Email,
		Kind:  c.Kind,
	}, nil
}

// IssueForTesting mints a token for test fixtures and local development
// tooling. Production issuance lives entirely in an external collaborator;
// this exists so this package's own tests don't need a second JWT library
// or a hand-rolled token string.
func IssueForTesting(secret, id, email, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}
