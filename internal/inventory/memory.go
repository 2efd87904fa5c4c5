package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-memory Store used by this package's tests and by the
// order service tests, which build a real Ledger on top of it.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	stock   map[uuid.UUID]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[uuid.UUID]*Record{},
		stock:   map[uuid.UUID]int{},
	}
}

// SeedProduct registers a product with its denormalized stock count.
func (m *MemoryStore) SeedProduct(productID uuid.UUID, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = stock
}

func (m *MemoryStore) Get(_ context.Context, productID uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[productID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ProductID]; ok {
		return nil
	}
	cp := *rec
	cp.UpdatedAt = time.Now()
	m.records[rec.ProductID] = &cp
	return nil
}

func (m *MemoryStore) Update(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.UpdatedAt = time.Now()
	m.records[rec.ProductID] = &cp
	return nil
}

func (m *MemoryStore) ProductStock(_ context.Context, productID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock, ok := m.stock[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return stock, nil
}
