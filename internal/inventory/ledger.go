// Package inventory is the stock ledger. All mutating calls assume the
// caller already holds the product's distributed lock ("product:{id}"); the
// ledger itself never locks, so callers can batch several mutations of one
// order under a single acquisition.
package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInsufficientStock       = errors.New("not enough stock to reserve")
	ErrInsufficientReservation = errors.New("not enough reserved stock")
	ErrNegativeQuantity        = errors.New("quantity must be positive")
)

type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Ensure returns the product's record, creating it on first reference with
// the product's denormalized stock count as the available quantity.
func (l *Ledger) Ensure(ctx context.Context, productID uuid.UUID) (*Record, error) {
	rec, err := l.store.Get(ctx, productID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	stock, err := l.store.ProductStock(ctx, productID)
	if err != nil {
		return nil, err
	}
	rec = &Record{ProductID: productID, QuantityAvailable: stock}
	if err := l.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Reserve moves qty from available to reserved.
func (l *Ledger) Reserve(ctx context.Context, productID uuid.UUID, qty int, actor uuid.UUID) (*Record, error) {
	if qty <= 0 {
		return nil, ErrNegativeQuantity
	}
	rec, err := l.Ensure(ctx, productID)
	if err != nil {
		return nil, err
	}
	if rec.QuantityAvailable < qty {
		return nil, ErrInsufficientStock
	}
	rec.QuantityAvailable -= qty
	rec.QuantityReserved += qty
	rec.LastUpdatedBy = actor
	rec.LastUpdateReason = "stock reserved"
	if err := l.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Confirm removes qty from reserved permanently: the sale is finalized.
func (l *Ledger) Confirm(ctx context.Context, productID uuid.UUID, qty int, actor uuid.UUID) (*Record, error) {
	if qty <= 0 {
		return nil, ErrNegativeQuantity
	}
	rec, err := l.Ensure(ctx, productID)
	if err != nil {
		return nil, err
	}
	if rec.QuantityReserved < qty {
		return nil, ErrInsufficientReservation
	}
	rec.QuantityReserved -= qty
	rec.LastUpdatedBy = actor
	rec.LastUpdateReason = "reservation confirmed"
	if err := l.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Release moves qty back from reserved to available (cancellation or
// rollback of a failed checkout).
func (l *Ledger) Release(ctx context.Context, productID uuid.UUID, qty int, actor uuid.UUID) (*Record, error) {
	if qty <= 0 {
		return nil, ErrNegativeQuantity
	}
	rec, err := l.Ensure(ctx, productID)
	if err != nil {
		return nil, err
	}
	if rec.QuantityReserved < qty {
		return nil, ErrInsufficientReservation
	}
	rec.QuantityReserved -= qty
	rec.QuantityAvailable += qty
	rec.LastUpdatedBy = actor
	rec.LastUpdateReason = "reservation released"
	if err := l.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Adjust corrects the available quantity by delta. The result may not go
// negative.
func (l *Ledger) Adjust(ctx context.Context, productID uuid.UUID, delta int, actor uuid.UUID, reason string) (*Record, error) {
	rec, err := l.Ensure(ctx, productID)
	if err != nil {
		return nil, err
	}
	if rec.QuantityAvailable+delta < 0 {
		return nil, ErrNegativeQuantity
	}
	rec.QuantityAvailable += delta
	rec.LastUpdatedBy = actor
	if reason == "" {
		reason = "manual adjustment"
	}
	rec.LastUpdateReason = reason
	if err := l.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
