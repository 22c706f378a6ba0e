package auth

import (
	"fmt"
	"slices"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scopes granted by tokens.
const (
	ScopeRead  = "jobs:read"
	ScopeWrite = "jobs:write"
)

// Claims are the claims of an API token.
type Claims struct {
	gojwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// Allows reports whether the token grants scope. Write implies read.
func (c *Claims) Allows(scope string) bool {
	if slices.Contains(c.Scopes, scope) {
		return true
	}
	return scope == ScopeRead && slices.Contains(c.Scopes, ScopeWrite)
}

// Service issues and verifies HMAC-signed API tokens.
type Service struct {
	cfg    Config
	method gojwt.SigningMethod
	now    func() time.Time
}

// NewService validates cfg and creates a Service.
func NewService(cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, method: gojwt.GetSigningMethod(cfg.Method), now: time.Now}, nil
}

// Issue signs a token for subject. A ttl of zero uses the configured TTL.
func (s *Service) Issue(subject string, ttl time.Duration, scopes ...string) (string, error) {
	if ttl <= 0 {
		ttl = s.cfg.TokenTTL
	}
	if len(scopes) == 0 {
		scopes = []string{ScopeWrite}
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
		Scopes: scopes,
	}
	signed, err := gojwt.NewWithClaims(s.method, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry and issuer of token.
func (s *Service) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	},
		gojwt.WithValidMethods([]string{s.method.Alg()}),
		gojwt.WithIssuer(s.cfg.Issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	return claims, nil
}
