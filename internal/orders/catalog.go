package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"
)

var ErrProductNotFound = errors.New("product not found")

// Catalog is the read-side product lookup used to snapshot name, price and
// farmer into order items.
type Catalog interface {
	Get(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context) ([]Product, error)
}

type PostgresCatalog struct{ DB *pgxpool.Pool }

func NewPostgresCatalog(db *pgxpool.Pool) *PostgresCatalog { return &PostgresCatalog{DB: db} }

func (c *PostgresCatalog) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := c.DB.QueryRow(ctx, `
		SELECT id, farmer_id, name, price_cents, stock, created_at, updated_at
		FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.FarmerID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select product")
	}
	return &p, nil
}

func (c *PostgresCatalog) List(ctx context.Context) ([]Product, error) {
	rows, err := c.DB.Query(ctx, `
		SELECT id, farmer_id, name, price_cents, stock, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select products")
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.FarmerID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, pkgerrors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
