package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wellhost/wellhost-server-go/internal/model"
)

const SessionTokenIssuer = "wellhost"

var ErrSessionTokensDisabled = errors.New("session signing secret not configured")

type sessionClaims struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Premium  bool   `json:"premium,omitempty"`
	jwt.RegisteredClaims
}

// SessionTokenService issues and verifies the self-issued auth_token, an
// HS256 JWT bound to the server's session secret.
type SessionTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionTokenService(secret string, ttl time.Duration) *SessionTokenService {
	return &SessionTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *SessionTokenService) Enabled() bool {
	return len(s.secret) > 0
}

func (s *SessionTokenService) TTL() time.Duration {
	return s.ttl
}

func (s *SessionTokenService) Issue(identity *model.Identity) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrSessionTokensDisabled
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := sessionClaims{
		Email:    identity.Email,
		FullName: identity.FullName,
		Premium:  identity.Premium,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    SessionTokenIssuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

func (s *SessionTokenService) Parse(tokenString string) (*model.Identity, error) {
	if !s.Enabled() {
		return nil, ErrSessionTokensDisabled
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(SessionTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("session token has no subject")
	}

	return &model.Identity{
		ID:       claims.Subject,
		Email:    claims.Email,
		FullName: claims.FullName,
		Premium:  claims.Premium,
		Source:   model.IdentitySourceSession,
	}, nil
}
