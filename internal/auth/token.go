package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every parse failure: bad signature, expiry, wrong
// algorithm or a subject that is not a user id.
var ErrInvalidToken = errors.New("invalid token")

const DefaultTokenTTL = 7 * 24 * time.Hour

// Tokens issues and parses bearer tokens. The signing algorithm is fixed at
// construction.
type Tokens struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	ttl       time.Duration
	now       func() time.Time
}

func NewHMACTokens(secret []byte, ttl time.Duration) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty jwt secret")
	}
	return &Tokens{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		ttl:       normalizeTTL(ttl),
		now:       time.Now,
	}, nil
}

func NewRSATokens(privatePEM, publicPEM []byte, ttl time.Duration) (*Tokens, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse rsa private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse rsa public key: %w", err)
	}
	return newRSATokens(priv, pub, ttl), nil
}

func newRSATokens(priv *rsa.PrivateKey, pub *rsa.PublicKey, ttl time.Duration) *Tokens {
	return &Tokens{
		method:    jwt.SigningMethodRS256,
		signKey:   priv,
		verifyKey: pub,
		ttl:       normalizeTTL(ttl),
		now:       time.Now,
	}
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTokenTTL
	}
	return ttl
}

func (t *Tokens) Algorithm() string {
	return t.method.Alg()
}

// Issue signs a token whose subject is userID.
func (t *Tokens) Issue(userID uuid.UUID) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.signKey)
	if err != nil {
		return "", fmt.Errorf("auth.issue: %w", err)
	}
	return signed, nil
}

func (t *Tokens) Parse(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return t.verifyKey, nil },
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}
