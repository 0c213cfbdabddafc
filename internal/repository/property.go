package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wellhost/wellhost-server-go/internal/model"
)

type PropertyRepository interface {
	FindByID(ctx context.Context, id string) (*model.Property, error)
	FindByChannexID(ctx context.Context, channexPropertyID string) (*model.Property, error)
	ListByUser(ctx context.Context, userID string) ([]model.Property, error)
}

type propertyRepo struct {
	db *sqlx.DB
}

func NewPropertyRepository(db *sqlx.DB) PropertyRepository {
	return &propertyRepo{db: db}
}

func (r *propertyRepo) FindByID(ctx context.Context, id string) (*model.Property, error) {
	var property model.Property
	err := r.db.GetContext(ctx, &property, `
		SELECT * FROM properties WHERE id = $1
	`, id)
	return HandleNotFound(&property, err)
}

func (r *propertyRepo) FindByChannexID(ctx context.Context, channexPropertyID string) (*model.Property, error) {
	var property model.Property
	err := r.db.GetContext(ctx, &property, `
		SELECT * FROM properties WHERE channex_property_id = $1
	`, channexPropertyID)
	return HandleNotFound(&property, err)
}

func (r *propertyRepo) ListByUser(ctx context.Context, userID string) ([]model.Property, error) {
	properties := []model.Property{}
	err := r.db.SelectContext(ctx, &properties, `
		SELECT * FROM properties
		WHERE user_id = $1
		ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return properties, nil
}
