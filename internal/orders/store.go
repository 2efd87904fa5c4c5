package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"
)

var ErrOrderNotFound = errors.New("order not found")

type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]Order, error)
}

type PostgresStore struct{ DB *pgxpool.Pool }

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore { return &PostgresStore{DB: db} }

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return pkgerrors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, customer_id, status, phone, total_cents)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.CustomerID, o.Status, o.Phone, o.TotalCents)
	if err != nil {
		return pkgerrors.Wrap(err, "insert order")
	}
	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, farmer_id, name, unit_price_cents, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, it.ProductID, it.FarmerID, it.Name, it.UnitPriceCents, it.Quantity)
		if err != nil {
			return pkgerrors.Wrap(err, "insert order item")
		}
	}
	return pkgerrors.Wrap(tx.Commit(ctx), "commit order")
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `
		SELECT id, customer_id, status, phone, total_cents, created_at, updated_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.CustomerID, &o.Status, &o.Phone, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select order")
	}

	rows, err := s.DB.Query(ctx, `
		SELECT product_id, farmer_id, name, unit_price_cents, quantity
		FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select order items")
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.FarmerID, &it.Name, &it.UnitPriceCents, &it.Quantity); err != nil {
			return nil, pkgerrors.Wrap(err, "scan order item")
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return pkgerrors.Wrap(err, "update order status")
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	return s.list(ctx, `
		SELECT id FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
}

func (s *PostgresStore) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]Order, error) {
	return s.list(ctx, `
		SELECT DISTINCT o.id FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.farmer_id = $1
		ORDER BY o.id`, farmerID)
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]Order, error) {
	rows, err := s.DB.Query(ctx, query, arg)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select orders")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, pkgerrors.Wrap(err, "scan order id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}
