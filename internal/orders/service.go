package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/inventory"
	"github.com/farmdirect/marketplace/internal/lock"
	kafkax "github.com/farmdirect/marketplace/internal/kafka"
)

var (
	ErrNoItems         = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	// ErrDuplicateItem: the per-product lock is not reentrant, so one order
	// may reference each product at most once.
	ErrDuplicateItem = errors.New("duplicate product in order")
	ErrForbidden     = errors.New("not allowed to modify this order")
)

type IllegalTransitionError struct {
	From, To Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// Locker is the distributed mutual-exclusion dependency; the real one lives
// in internal/lock.
type Locker interface {
	Acquire(ctx context.Context, resourceKey string) (*lock.Handle, error)
	Release(ctx context.Context, h *lock.Handle) error
}

// Publisher emits domain events after commit. Delivery is asynchronous and
// best effort; it can never fail an order operation.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	store   Store
	catalog Catalog
	ledger  *inventory.Ledger
	locks   Locker
	events  Publisher
	log     *logrus.Logger
	name    string
}

func NewService(store Store, catalog Catalog, ledger *inventory.Ledger, locks Locker, events Publisher, log *logrus.Logger, serviceName string) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		ledger:  ledger,
		locks:   locks,
		events:  events,
		log:     log,
		name:    serviceName,
	}
}

func productKey(id uuid.UUID) string { return "product:" + id.String() }

type reservation struct {
	productID uuid.UUID
	qty       int
}

// Create reserves stock for every item under the product's lock and persists
// the order in pending status. If any reservation fails, everything reserved
// so far is rolled back and no order is persisted.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, phone string, items []ItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if seen[it.ProductID] {
			return nil, ErrDuplicateItem
		}
		seen[it.ProductID] = true
	}

	var (
		held     []*lock.Handle
		reserved []reservation
	)
	releaseLocks := func() {
		for _, h := range held {
			if err := s.locks.Release(ctx, h); err != nil {
				s.log.WithError(err).WithField("resource", h.ResourceKey).Warn("lock release failed")
			}
		}
	}
	// Undo reservations in place; locks for them are still held.
	rollback := func() {
		for _, r := range reserved {
			if _, err := s.ledger.Release(ctx, r.productID, r.qty, customerID); err != nil {
				s.log.WithError(err).WithField("product_id", r.productID).Error("reservation rollback failed")
			}
		}
		releaseLocks()
	}

	order := &Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     StatusPending,
		Phone:      phone,
	}

	for _, it := range items {
		h, err := s.locks.Acquire(ctx, productKey(it.ProductID))
		if err != nil {
			rollback()
			return nil, err
		}
		held = append(held, h)

		prod, err := s.catalog.Get(ctx, it.ProductID)
		if err != nil {
			rollback()
			return nil, err
		}

		if _, err := s.ledger.Reserve(ctx, it.ProductID, it.Quantity, customerID); err != nil {
			rollback()
			if errors.Is(err, inventory.ErrInsufficientStock) {
				return nil, fmt.Errorf("%s: %w", prod.Name, inventory.ErrInsufficientStock)
			}
			return nil, err
		}
		reserved = append(reserved, reservation{productID: it.ProductID, qty: it.Quantity})

		order.Items = append(order.Items, OrderItem{
			ProductID:      prod.ID,
			FarmerID:       prod.FarmerID,
			Name:           prod.Name,
			UnitPriceCents: prod.PriceCents,
			Quantity:       it.Quantity,
		})
		order.TotalCents += prod.PriceCents * it.Quantity
	}

	if err := s.store.Create(ctx, order); err != nil {
		rollback()
		return nil, err
	}
	releaseLocks()

	s.publishCreated(order)
	return order, nil
}

// Transition moves an order to a new status. Cancellation and return hand
// still-reserved units back to the sellable pool; the other statuses are
// pure bookkeeping.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, newStatus Status, actor Actor) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !s.mayTransition(o, actor) {
		return nil, ErrForbidden
	}
	if !CanTransition(o.Status, newStatus) {
		return nil, &IllegalTransitionError{From: o.Status, To: newStatus}
	}

	if newStatus.releasesReservation() {
		if err := s.releaseItems(ctx, o, actor); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateStatus(ctx, o.ID, newStatus); err != nil {
		return nil, err
	}
	old := o.Status
	o.Status = newStatus

	s.publishStatusChanged(o, old)
	return o, nil
}

// CanAccess reports whether the actor may read or transition the order:
// an admin, the order's customer, or a farmer with an item in it.
func (s *Service) CanAccess(o *Order, actor Actor) bool {
	return s.mayTransition(o, actor)
}

func (s *Service) mayTransition(o *Order, actor Actor) bool {
	if actor.Role == identity.RoleAdmin || actor.ID == o.CustomerID {
		return true
	}
	for _, it := range o.Items {
		if it.FarmerID == actor.ID {
			return true
		}
	}
	return false
}

// releaseItems returns whatever is still reserved for each item, capped at
// the item quantity, each under its product's lock.
func (s *Service) releaseItems(ctx context.Context, o *Order, actor Actor) error {
	for _, it := range o.Items {
		h, err := s.locks.Acquire(ctx, productKey(it.ProductID))
		if err != nil {
			return err
		}

		rec, err := s.ledger.Ensure(ctx, it.ProductID)
		if err == nil {
			qty := it.Quantity
			if rec.QuantityReserved < qty {
				qty = rec.QuantityReserved
			}
			if qty > 0 {
				_, err = s.ledger.Release(ctx, it.ProductID, qty, actor.ID)
			}
		}

		if relErr := s.locks.Release(ctx, h); relErr != nil {
			s.log.WithError(relErr).WithField("resource", h.ResourceKey).Warn("lock release failed")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

func (s *Service) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]Order, error) {
	return s.store.ListByFarmer(ctx, farmerID)
}

func (s *Service) publishCreated(o *Order) {
	if s.events == nil {
		return
	}
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{
			ProductID:      it.ProductID.String(),
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	s.publish(EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:    o.ID.String(),
		CustomerID: o.CustomerID.String(),
		Items:      items,
		TotalCents: o.TotalCents,
	})
}

func (s *Service) publishStatusChanged(o *Order, old Status) {
	if s.events == nil {
		return
	}
	s.publish(EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID:    o.ID.String(),
		CustomerID: o.CustomerID.String(),
		OldStatus:  string(old),
		NewStatus:  string(o.Status),
	})
}

func (s *Service) publish(eventType string, orderID uuid.UUID, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.name,
		CorrelationID: orderID.String(),
		Payload:       kafkax.MustMarshal(payload),
	}
	s.events.Publish(PartitionKey(orderID.String()), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
