package model

import "time"

type Property struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"userId"`
	Name              string    `db:"name" json:"name"`
	ChannexPropertyID *string   `db:"channex_property_id" json:"channexPropertyId,omitempty"`
	Timezone          string    `db:"timezone" json:"timezone"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}
