package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wellhost/wellhost-server-go/internal/model"
)

type ExternalAccountRepository interface {
	FindActive(ctx context.Context, userID string, platform model.Platform) (*model.ExternalAccount, error)
	FindByID(ctx context.Context, id string) (*model.ExternalAccount, error)
	ListByUser(ctx context.Context, userID string) ([]*model.ExternalAccount, error)
	// Upsert writes the active row for (user, platform), replacing its credentials
	// if one exists. Repeating it with the same params is harmless.
	Upsert(ctx context.Context, params model.UpsertExternalAccountParams) (*model.ExternalAccount, error)
	// UpdateTokens reports false when the row's token_version moved on.
	UpdateTokens(ctx context.Context, params model.UpdateTokensParams) (bool, error)
	Deactivate(ctx context.Context, userID string, platform model.Platform) (int64, error)
	CountByState(ctx context.Context) ([]model.AccountStateCount, error)
}

type externalAccountDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type externalAccountRepo struct {
	db externalAccountDB
}

func NewExternalAccountRepository(db *sqlx.DB) ExternalAccountRepository {
	return &externalAccountRepo{db: db}
}

func (r *externalAccountRepo) FindActive(ctx context.Context, userID string, platform model.Platform) (*model.ExternalAccount, error) {
	var account model.ExternalAccount
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM external_accounts
		WHERE user_id = $1 AND platform = $2 AND is_active
	`, userID, platform)
	return HandleNotFound(&account, err)
}

func (r *externalAccountRepo) FindByID(ctx context.Context, id string) (*model.ExternalAccount, error) {
	var account model.ExternalAccount
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM external_accounts WHERE id = $1
	`, id)
	return HandleNotFound(&account, err)
}

func (r *externalAccountRepo) ListByUser(ctx context.Context, userID string) ([]*model.ExternalAccount, error) {
	var accounts []*model.ExternalAccount
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT * FROM external_accounts
		WHERE user_id = $1 AND is_active
		ORDER BY platform ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *externalAccountRepo) Upsert(ctx context.Context, params model.UpsertExternalAccountParams) (*model.ExternalAccount, error) {
	metadata, err := params.MetadataJSON()
	if err != nil {
		return nil, err
	}

	var account model.ExternalAccount
	err = r.db.GetContext(ctx, &account, `
		INSERT INTO external_accounts (
			user_id, platform, external_account_id, access_token, refresh_token,
			token_expires_at, scopes, metadata, is_active, last_synced_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NOW())
		ON CONFLICT (user_id, platform) WHERE is_active DO UPDATE SET
			external_account_id = COALESCE(EXCLUDED.external_account_id, external_accounts.external_account_id),
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			scopes = EXCLUDED.scopes,
			metadata = external_accounts.metadata || EXCLUDED.metadata,
			token_version = external_accounts.token_version + 1,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING *
	`, params.UserID, params.Platform, params.ExternalAccountID, params.AccessToken, params.RefreshToken,
		params.TokenExpiresAt, pq.StringArray(params.Scopes), metadata)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *externalAccountRepo) UpdateTokens(ctx context.Context, params model.UpdateTokensParams) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE external_accounts
		SET access_token = $3,
			refresh_token = $4,
			token_expires_at = $5,
			token_version = token_version + 1,
			last_synced_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND token_version = $2 AND is_active
	`, params.ID, params.ExpectedVersion, params.AccessToken, params.RefreshToken, params.TokenExpiresAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *externalAccountRepo) Deactivate(ctx context.Context, userID string, platform model.Platform) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE external_accounts
		SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND platform = $2 AND is_active
	`, userID, platform)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *externalAccountRepo) CountByState(ctx context.Context) ([]model.AccountStateCount, error) {
	var counts []model.AccountStateCount
	err := r.db.SelectContext(ctx, &counts, `
		SELECT platform,
			COUNT(*) FILTER (WHERE token_expires_at IS NULL OR token_expires_at > NOW()) AS active,
			COUNT(*) FILTER (WHERE token_expires_at <= NOW()) AS expired
		FROM external_accounts
		WHERE is_active
		GROUP BY platform
	`)
	if err != nil {
		return nil, err
	}
	return counts, nil
}
