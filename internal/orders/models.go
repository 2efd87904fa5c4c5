package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmdirect/marketplace/internal/identity"
)

type Product struct {
	ID         uuid.UUID `json:"id"`
	FarmerID   uuid.UUID `json:"farmer_id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Stock      int       `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Order struct {
	ID         uuid.UUID   `json:"id"`
	CustomerID uuid.UUID   `json:"customer_id"`
	Status     Status      `json:"status"`
	Phone      string      `json:"phone"`
	TotalCents int         `json:"total_cents"`
	Items      []OrderItem `json:"items"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// OrderItem snapshots name and price at checkout so the order keeps its
// historical value even if the product is edited later.
type OrderItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	FarmerID       uuid.UUID `json:"farmer_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
}

type ItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Actor is the authenticated caller of a state-machine operation.
type Actor struct {
	ID   uuid.UUID
	Role identity.Role
}
