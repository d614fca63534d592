package auth

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTokenTTL applies when the configured TTL is zero.
	DefaultTokenTTL = 24 * time.Hour

	secretBytes = 32

	issuer = "sim8085-launcher"
)

// CustomClaims extends JWT standard claims with the launch session and role.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	SessionID string `json:"sid"`
}

// Signer issues and parses tokens for one launcher run.
//
// Safe for concurrent use.
type Signer struct {
	secret  []byte
	session string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner creates a Signer with a fresh random secret. Tokens carry
// session as their sid claim.
func NewSigner(session string, ttl time.Duration) (*Signer, error) {
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating token secret: %w", err)
	}
	return newSigner(secret, session, ttl), nil
}

func newSigner(secret []byte, session string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{
		secret:  secret,
		session: session,
		ttl:     ttl,
		now:     time.Now,
	}
}

// IssueToken creates a signed HS256 token for subject with the given role.
func (s *Signer) IssueToken(subject string, role Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := s.now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		Role:      role,
		SessionID: s.session,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates tokenString and returns its claims. The signature,
// expiry, issuer, session and role are all checked.
func (s *Signer) ParseToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.SessionID != s.session {
		return nil, fmt.Errorf("%w: session mismatch", ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return claims, nil
}
