package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Record tracks sellable vs. reserved quantity for one product. Both
// quantities stay non-negative through every mutation; units only move
// between the two buckets or in/out via an authorized adjustment.
type Record struct {
	ProductID         uuid.UUID `json:"product_id"`
	QuantityAvailable int       `json:"quantity_available"`
	QuantityReserved  int       `json:"quantity_reserved"`
	LastUpdatedBy     uuid.UUID `json:"last_updated_by"`
	LastUpdateReason  string    `json:"last_update_reason"`
	UpdatedAt         time.Time `json:"updated_at"`
}
