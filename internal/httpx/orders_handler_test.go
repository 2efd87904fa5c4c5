package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/inventory"
	"github.com/farmdirect/marketplace/internal/orders"
	"github.com/farmdirect/marketplace/internal/redisx"
	"github.com/farmdirect/marketplace/internal/token"
)

type stubOrderStore struct {
	byID map[uuid.UUID]*orders.Order
}

func (s *stubOrderStore) Create(_ context.Context, o *orders.Order) error {
	s.byID[o.ID] = o
	return nil
}

func (s *stubOrderStore) Get(_ context.Context, id uuid.UUID) (*orders.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubOrderStore) UpdateStatus(_ context.Context, id uuid.UUID, status orders.Status) error {
	o, ok := s.byID[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (s *stubOrderStore) ListByCustomer(context.Context, uuid.UUID) ([]orders.Order, error) {
	return nil, nil
}

func (s *stubOrderStore) ListByFarmer(context.Context, uuid.UUID) ([]orders.Order, error) {
	return nil, nil
}

func bearer(t *testing.T, issuer *token.Issuer, u *identity.User) string {
	t.Helper()
	pair, err := issuer.Issue(u)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func getStatus(t *testing.T, router http.Handler, orderID uuid.UUID, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID.String()+"/status", nil)
	req.Header.Set("Authorization", auth)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetOrderStatusAccess(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	owner := &identity.User{ID: uuid.New(), Role: identity.RoleCustomer, Email: "owner@example.com"}
	farmer := &identity.User{ID: uuid.New(), Role: identity.RoleFarmer, Email: "farmer@example.com"}
	stranger := &identity.User{ID: uuid.New(), Role: identity.RoleCustomer, Email: "other@example.com"}

	order := &orders.Order{
		ID:         uuid.New(),
		CustomerID: owner.ID,
		Status:     orders.StatusPending,
		Items:      []orders.OrderItem{{ProductID: uuid.New(), FarmerID: farmer.ID, Quantity: 1}},
	}
	store := &stubOrderStore{byID: map[uuid.UUID]*orders.Order{order.ID: order}}

	svc := orders.NewService(store, nil, inventory.NewLedger(inventory.NewMemoryStore()), nil, nil, log, "test")
	issuer := token.NewIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)

	router := NewRouter()
	(&OrdersHandler{Service: svc, Redis: rdb, Log: log}).Register(router, issuer)

	// Cold cache: a stranger is refused before anything is cached.
	rec := getStatus(t, router, order.ID, bearer(t, issuer, stranger))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyOrderStatus, order.ID)))

	// The owner reads it and warms the cache.
	rec = getStatus(t, router, order.ID, bearer(t, issuer, owner))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending")
	require.True(t, mr.Exists(fmt.Sprintf(redisx.KeyOrderStatus, order.ID)))

	// Warm cache: the stranger is still refused, the parties still served.
	rec = getStatus(t, router, order.ID, bearer(t, issuer, stranger))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = getStatus(t, router, order.ID, bearer(t, issuer, farmer))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending")
}
