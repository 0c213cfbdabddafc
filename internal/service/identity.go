package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/model"
)

const managedAudience = "authenticated"

// SessionCredentials are the raw tokens a request may carry.
type SessionCredentials struct {
	// BearerToken comes from the Authorization header and may be either a
	// managed-auth access token or a self-issued session token.
	BearerToken string
	// ManagedToken is the managed-auth access token cookie.
	ManagedToken string
	// SessionToken is the self-issued auth_token cookie.
	SessionToken string
}

func (c SessionCredentials) Empty() bool {
	return c.BearerToken == "" && c.ManagedToken == "" && c.SessionToken == ""
}

// IdentityResolver turns request credentials into the acting user.
type IdentityResolver interface {
	Resolve(ctx context.Context, creds SessionCredentials) (*model.Identity, error)
}

type managedClaims struct {
	Email        string `json:"email"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		Name      string `json:"name"`
		IsPremium bool   `json:"is_premium"`
	} `json:"user_metadata"`
	AppMetadata struct {
		Premium bool `json:"premium"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// ManagedSessionVerifier checks access tokens minted by the managed auth
// provider (HS256 with the project's JWT secret).
type ManagedSessionVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewManagedSessionVerifier(secret string) *ManagedSessionVerifier {
	return &ManagedSessionVerifier{secret: []byte(secret), now: time.Now}
}

func (v *ManagedSessionVerifier) Enabled() bool {
	return len(v.secret) > 0
}

func (v *ManagedSessionVerifier) Verify(tokenString string) (*model.Identity, error) {
	var claims managedClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(managedAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("managed token has no subject")
	}

	fullName := claims.UserMetadata.FullName
	if fullName == "" {
		fullName = claims.UserMetadata.Name
	}

	return &model.Identity{
		ID:       claims.Subject,
		Email:    claims.Email,
		FullName: fullName,
		Premium:  claims.UserMetadata.IsPremium || claims.AppMetadata.Premium,
		Source:   model.IdentitySourceManaged,
	}, nil
}

// SessionResolver is the single identity resolver: managed-auth session
// first, then the self-issued session token, then (only when enabled) the
// unsigned legacy token.
type SessionResolver struct {
	managed     *ManagedSessionVerifier
	sessions    *SessionTokenService
	allowLegacy bool
}

func NewSessionResolver(managed *ManagedSessionVerifier, sessions *SessionTokenService, allowLegacy bool) *SessionResolver {
	return &SessionResolver{
		managed:     managed,
		sessions:    sessions,
		allowLegacy: allowLegacy,
	}
}

func (r *SessionResolver) Resolve(ctx context.Context, creds SessionCredentials) (*model.Identity, error) {
	if r.managed.Enabled() {
		for _, token := range []string{creds.BearerToken, creds.ManagedToken} {
			if token == "" {
				continue
			}
			identity, err := r.managed.Verify(token)
			if err == nil {
				return identity, nil
			}
			log.Debug().Err(err).Msg("managed session token rejected")
		}
	}

	if r.sessions.Enabled() {
		for _, token := range []string{creds.SessionToken, creds.BearerToken} {
			if token == "" {
				continue
			}
			identity, err := r.sessions.Parse(token)
			if err == nil {
				return identity, nil
			}
			log.Debug().Err(err).Msg("session token rejected")
		}
	}

	if r.allowLegacy && creds.SessionToken != "" {
		identity, err := decodeLegacySessionToken(creds.SessionToken)
		if err == nil {
			log.Warn().Str("userId", identity.ID).Msg("accepted unsigned legacy session token")
			audit.Log(ctx, audit.Event{
				Type:   audit.EventLegacyTokenAccepted,
				UserID: identity.ID,
			})
			return identity, nil
		}
		log.Debug().Err(err).Msg("legacy session token rejected")
	}

	return nil, apperrors.Unauthenticated()
}

// decodeLegacySessionToken reads the old base64(JSON) auth_token. It proves
// nothing about the caller and is only reachable behind a config flag.
func decodeLegacySessionToken(token string) (*model.Identity, error) {
	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		raw, err = enc.DecodeString(token)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode legacy token: %w", err)
	}

	var payload struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FullName  string `json:"full_name"`
		IsPremium bool   `json:"is_premium"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse legacy token: %w", err)
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New("legacy token has no id")
	}

	return &model.Identity{
		ID:       payload.ID,
		Email:    payload.Email,
		FullName: payload.FullName,
		Premium:  payload.IsPremium,
		Source:   model.IdentitySourceLegacy,
	}, nil
}
