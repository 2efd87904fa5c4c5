package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"
)

var (
	ErrRecordNotFound  = errors.New("inventory record not found")
	ErrProductNotFound = errors.New("product not found")
)

type Store interface {
	Get(ctx context.Context, productID uuid.UUID) (*Record, error)
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	// ProductStock reads the product's denormalized stock count, used to
	// seed the record on first reference.
	ProductStock(ctx context.Context, productID uuid.UUID) (int, error)
}

type PostgresStore struct{ DB *pgxpool.Pool }

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore { return &PostgresStore{DB: db} }

func (s *PostgresStore) Get(ctx context.Context, productID uuid.UUID) (*Record, error) {
	var rec Record
	var lastBy *uuid.UUID
	err := s.DB.QueryRow(ctx, `
		SELECT product_id, quantity_available, quantity_reserved, last_updated_by, last_update_reason, updated_at
		FROM inventory WHERE product_id = $1`, productID).
		Scan(&rec.ProductID, &rec.QuantityAvailable, &rec.QuantityReserved, &lastBy, &rec.LastUpdateReason, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select inventory")
	}
	if lastBy != nil {
		rec.LastUpdatedBy = *lastBy
	}
	return &rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	// Concurrent first reference is resolved by the primary key; losing
	// the race is fine, the caller re-reads under the lock.
	_, err := s.DB.Exec(ctx, `
		INSERT INTO inventory(product_id, quantity_available, quantity_reserved, last_update_reason)
		VALUES ($1, $2, $3, 'seeded from product stock')
		ON CONFLICT (product_id) DO NOTHING`,
		rec.ProductID, rec.QuantityAvailable, rec.QuantityReserved)
	return pkgerrors.Wrap(err, "insert inventory")
}

func (s *PostgresStore) Update(ctx context.Context, rec *Record) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE inventory
		SET quantity_available = $2, quantity_reserved = $3,
		    last_updated_by = $4, last_update_reason = $5, updated_at = now()
		WHERE product_id = $1`,
		rec.ProductID, rec.QuantityAvailable, rec.QuantityReserved, rec.LastUpdatedBy, rec.LastUpdateReason)
	return pkgerrors.Wrap(err, "update inventory")
}

func (s *PostgresStore) ProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := s.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, pkgerrors.Wrap(err, "select product stock")
	}
	return stock, nil
}
