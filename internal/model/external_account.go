package model

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// ExternalAccount is a host's credential for a booking channel. At most one
// row per (user, platform) is active; disconnect only clears IsActive.
type ExternalAccount struct {
	ID                string         `db:"id" json:"id"`
	UserID            string         `db:"user_id" json:"userId"`
	Platform          Platform       `db:"platform" json:"platform"`
	ExternalAccountID *string        `db:"external_account_id" json:"externalAccountId,omitempty"`
	AccessToken       string         `db:"access_token" json:"-"`
	RefreshToken      string         `db:"refresh_token" json:"-"`
	TokenExpiresAt    *time.Time     `db:"token_expires_at" json:"tokenExpiresAt,omitempty"`
	Scopes            pq.StringArray `db:"scopes" json:"scopes"`
	Metadata          types.JSONText `db:"metadata" json:"metadata"`
	IsActive          bool           `db:"is_active" json:"isActive"`
	TokenVersion      int64          `db:"token_version" json:"-"`
	LastSyncedAt      *time.Time     `db:"last_synced_at" json:"lastSyncedAt,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsExpired reports whether the access token must be refreshed before use.
// An account without an expiry never expires.
func (a *ExternalAccount) IsExpired(now time.Time) bool {
	return a.TokenExpiresAt != nil && !now.Before(*a.TokenExpiresAt)
}

type UpsertExternalAccountParams struct {
	UserID            string
	Platform          Platform
	ExternalAccountID *string
	AccessToken       string
	RefreshToken      string
	TokenExpiresAt    *time.Time
	Scopes            []string
	Metadata          map[string]any
}

func (p UpsertExternalAccountParams) MetadataJSON() (types.JSONText, error) {
	if len(p.Metadata) == 0 {
		return types.JSONText("{}"), nil
	}
	b, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, err
	}
	return types.JSONText(b), nil
}

// UpdateTokensParams applies only when the row still has ExpectedVersion.
type UpdateTokensParams struct {
	ID              string
	ExpectedVersion int64
	AccessToken     string
	RefreshToken    string
	TokenExpiresAt  *time.Time
}

type AccountStateCount struct {
	Platform Platform `db:"platform"`
	Active   int      `db:"active"`
	Expired  int      `db:"expired"`
}

// ConnectionStatus is the dashboard summary of a host's channel connection.
type ConnectionStatus struct {
	Platform          Platform   `json:"platform"`
	Connected         bool       `json:"connected"`
	ExternalAccountID *string    `json:"externalAccountId,omitempty"`
	Scopes            []string   `json:"scopes,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	Expired           bool       `json:"expired"`
	LastSyncedAt      *time.Time `json:"lastSyncedAt,omitempty"`
	ConnectedAt       *time.Time `json:"connectedAt,omitempty"`
}
