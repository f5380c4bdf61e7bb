package token

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token cookie names
const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"
)

// Default token lifetimes
const (
	DefaultAccessExpiry  = 5 * time.Minute
	DefaultRefreshExpiry = 15 * time.Minute
)

// Claims struct for JWT claims
type Claims struct {
	ExtraClaims interface{} `json:"extra_claims,omitempty"`
	jwt.RegisteredClaims
}

// Generator interface defines methods for token operations
type Generator interface {
	// GenerateToken generates a token with the given subject, expiry and extra claims.
	// Each token carries a fresh JTI; the JTI is returned with the token value.
	GenerateToken(subject string, expiry time.Duration, extraClaims map[string]interface{}) (TokenValue, error)

	// ParseToken parses and validates a token
	ParseToken(tokenStr string) (*jwt.Token, error)
}

// TokenValue is a signed token together with its identifying metadata
type TokenValue struct {
	Token  string
	JTI    string
	Expiry time.Time
}

// JwtGenerator implements the Generator interface with HS256 signing
type JwtGenerator struct {
	Secret   string
	Issuer   string
	Audience string
}

// NewJwtGenerator creates a new JwtGenerator
func NewJwtGenerator(secret, issuer, audience string) *JwtGenerator {
	return &JwtGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
	}
}

// GenerateToken creates a new token with the given subject and claims
func (g *JwtGenerator) GenerateToken(subject string, expiry time.Duration, extraClaims map[string]interface{}) (TokenValue, error) {
	now := time.Now().UTC()
	jti := uuid.New().String()
	claims := Claims{
		ExtraClaims: extraClaims,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   subject,
			ID:        jti,
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed to sign JWT claims", "err", err)
		return TokenValue{}, err
	}
	return TokenValue{
		Token:  signed,
		JTI:    jti,
		Expiry: claims.ExpiresAt.Time,
	}, nil
}

// ParseToken parses and validates a token string
func (g *JwtGenerator) ParseToken(tokenStr string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	return token, nil
}

// TokenPair is an access token plus its refresh token
type TokenPair struct {
	Access  TokenValue
	Refresh TokenValue
}

// Service issues access/refresh token pairs for session identities
type Service struct {
	generator     Generator
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewService creates a token service with default lifetimes
func NewService(generator Generator) *Service {
	return &Service{
		generator:     generator,
		accessExpiry:  DefaultAccessExpiry,
		refreshExpiry: DefaultRefreshExpiry,
	}
}

// GenerateTokens issues a fresh access/refresh pair bound to the subject
func (s *Service) GenerateTokens(subject string, extraClaims map[string]interface{}) (TokenPair, error) {
	access, err := s.generator.GenerateToken(subject, s.accessExpiry, extraClaims)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.generator.GenerateToken(subject, s.refreshExpiry, extraClaims)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseToken parses and validates a token string
func (s *Service) ParseToken(tokenStr string) (*jwt.Token, error) {
	return s.generator.ParseToken(tokenStr)
}
