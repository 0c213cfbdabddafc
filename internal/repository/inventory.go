package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/wellhost/wellhost-server-go/internal/model"
)

type InventoryRepository interface {
	Create(ctx context.Context, params model.CreateInventoryChangeParams) (*model.InventoryChange, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) InventoryRepository
}

// inventoryDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type inventoryDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type inventoryRepo struct {
	db inventoryDB
}

func NewInventoryRepository(db *sqlx.DB) InventoryRepository {
	return &inventoryRepo{db: db}
}

func (r *inventoryRepo) WithTx(tx *sqlx.Tx) InventoryRepository {
	return &inventoryRepo{db: tx}
}

func (r *inventoryRepo) Create(ctx context.Context, params model.CreateInventoryChangeParams) (*model.InventoryChange, error) {
	payload := params.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var change model.InventoryChange
	err := r.db.GetContext(ctx, &change, `
		INSERT INTO channel_inventory_changes (property_id, kind, room_type_id, rate_plan_id, date_from, date_to, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.PropertyID, params.Kind, params.RoomTypeID, params.RatePlanID, params.DateFrom, params.DateTo, payload)
	if err != nil {
		return nil, err
	}
	return &change, nil
}
