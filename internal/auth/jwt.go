// Package auth issues and validates the bearer tokens that guard the lookup API.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token defaults.
const (
	DefaultTokenExpiry = 24 * time.Hour
	DefaultIssuer      = "wlocate"
	DefaultAudience    = "wlocate-api"
)

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingSubject     = errors.New("token subject is required")
)

// JWTConfig configures token signing. Tokens carry the client ID as subject.
type JWTConfig struct {
	// SigningKey is the HS256 secret. Empty disables authentication.
	SigningKey string
	Issuer     string
	Audience   string
	Expiry     time.Duration
}

// ConfigFromEnv reads JWT_SIGNING_KEY, JWT_ISSUER, JWT_AUDIENCE and
// JWT_TOKEN_EXPIRY.
func ConfigFromEnv() JWTConfig {
	cfg := JWTConfig{
		SigningKey: os.Getenv("JWT_SIGNING_KEY"),
		Issuer:     getEnvOrDefault("JWT_ISSUER", DefaultIssuer),
		Audience:   getEnvOrDefault("JWT_AUDIENCE", DefaultAudience),
		Expiry:     DefaultTokenExpiry,
	}
	if d, err := time.ParseDuration(os.Getenv("JWT_TOKEN_EXPIRY")); err == nil && d > 0 {
		cfg.Expiry = d
	}
	return cfg
}

// Enabled reports whether a signing key is configured.
func (c JWTConfig) Enabled() bool {
	return c.SigningKey != ""
}

// JWTService signs and verifies HS256 access tokens.
type JWTService struct {
	key      []byte
	issuer   string
	audience string
	expiry   time.Duration
	parser   *jwt.Parser
	now      func() time.Time
}

// NewJWTService creates a JWTService, filling unset fields with defaults.
func NewJWTService(cfg JWTConfig) *JWTService {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultTokenExpiry
	}

	return &JWTService{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		expiry:   cfg.Expiry,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
		),
		now: time.Now,
	}
}

// GenerateAccessToken signs a token for subject and returns it with its
// expiry time.
func (s *JWTService) GenerateAccessToken(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrMissingSubject
	}

	issued := s.now()
	expires := issued.Add(s.expiry)
	claims := jwt.RegisteredClaims{
		ID:        tokenID(),
		Issuer:    s.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(issued),
		NotBefore: jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// ValidateAccessToken verifies token and returns its subject.
func (s *JWTService) ValidateAccessToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrAccessTokenExpired
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	case claims.Subject == "":
		return "", ErrInvalidAccessToken
	}
	return claims.Subject, nil
}

func tokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
