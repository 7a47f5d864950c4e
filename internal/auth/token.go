package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskflow/taskflow/internal/model"
)

var (
	// ErrInvalidToken covers bad signatures, wrong algorithms, wrong issuers
	// and malformed payloads.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned once the current time passes exp.
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the JWT payload. Role is advisory: the authentication gate
// reloads the user and uses the stored role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is what a verified token asserts.
type Identity struct {
	UserID string
	Role   model.Role
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a token service.
func NewTokenService(secret []byte, ttl time.Duration, issuer string, opts ...TokenOption) *TokenService {
	s := &TokenService{
		secret: secret,
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for userID and role, returning it with its expiry.
func (s *TokenService) Issue(userID string, role model.Role) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature, algorithm, issuer and expiry of tokenString.
// Nothing from an unverified token is returned.
func (s *TokenService) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &Identity{UserID: claims.Subject, Role: role}, nil
}
