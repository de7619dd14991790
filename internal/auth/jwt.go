// Package auth issues and verifies session tokens, hashes passwords, gates
// HTTP routes on the session cookie and wraps the Google OAuth flow.
//
// SESSION FLOW:
//  1. POST /api/auth/login (or the Google callback) verifies the credentials
//  2. The server issues a signed JWT carrying {id, email, role}
//  3. The token goes back in the HttpOnly "access_token" cookie
//  4. On later calls the Gate reads the cookie, verifies the JWT and puts a
//     typed Identity into the request context
//
// JWT is stateless: verifying a token needs the secret, not a DB lookup.
// The flip side is that role changes take effect on the next login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/blog-platform/internal/model"
)

// Issuer is written into and required on every token.
const Issuer = "blog-platform"

// MinSecretLength is the shortest signing secret NewTokenService accepts.
const MinSecretLength = 16

// ErrInvalidToken covers every reason a token is rejected: malformed,
// wrong algorithm, wrong issuer, expired or bad signature. Callers never
// need to tell these apart.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Claims is the session token payload.
//
// The identity fields use the JSON names the frontend already decodes
// ("id", "email", "role"). jwt.RegisteredClaims adds iat, iss and,
// when a TTL is configured, exp.
type Claims struct {
	UserID int64      `json:"id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the caller identity carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.UserID, Email: c.Email, Role: c.Role}
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret used to sign and verify tokens and the session
// lifetime. A zero ttl issues tokens with no "exp" claim.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. A missing or short secret is an
// error: authenticated routes must never run with a guessable key.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: JWT secret is required")
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl < 0 {
		return nil, errors.New("auth: token TTL must not be negative")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured session lifetime; zero means no expiry.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given user.
//
// Signing algorithm: HS256. Symmetric, so the same secret verifies it.
func (s *TokenService) Issue(user *model.User) (string, error) {
	now := s.now()

	c := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and verifies a token string.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Algorithm is HS256 (blocks "none" and algorithm confusion)
//   - Issuer is "blog-platform"
//   - exp, when present, is in the future; when a TTL is configured the
//     claim is mandatory
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	}
	if s.ttl > 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if c.UserID == 0 || !c.Role.Valid() {
		return nil, fmt.Errorf("%w: missing identity claims", ErrInvalidToken)
	}
	return c, nil
}
