package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/orders"
	"github.com/farmdirect/marketplace/internal/redisx"
	"github.com/farmdirect/marketplace/internal/token"
)

type OrdersHandler struct {
	Service *orders.Service
	Redis   *redis.Client
	Log     *logrus.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux, issuer *token.Issuer) {
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(issuer))
		r.Post("/orders", h.createOrder)
		r.Get("/orders/my", h.myOrders)
		r.Get("/orders/farmer", h.farmerOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getOrderStatus)
		r.Patch("/orders/{id}/status", h.updateStatus)
	})
}

type orderItemReq struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type createOrderReq struct {
	Phone string         `json:"phone" validate:"required"`
	Items []orderItemReq `json:"items" validate:"required,min=1,dive"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !decode(w, r, &req) {
		return
	}
	items := make([]orders.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid product id")
			return
		}
		items = append(items, orders.ItemInput{ProductID: pid, Quantity: it.Quantity})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	actor := actorFrom(r)
	o, err := h.Service.Create(ctx, actor.ID, req.Phone, items)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.Get(ctx, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if !h.Service.CanAccess(o, actorFrom(r)) {
		writeErr(w, http.StatusForbidden, "not your order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// cachedStatus carries the order's parties next to the status so a cache hit
// can still enforce who may read it. Only the status leaves the server.
type cachedStatus struct {
	Status     orders.Status `json:"status"`
	CustomerID uuid.UUID     `json:"customer_id"`
	FarmerIDs  []uuid.UUID   `json:"farmer_ids,omitempty"`
}

func statusCacheEntry(o *orders.Order) cachedStatus {
	cs := cachedStatus{Status: o.Status, CustomerID: o.CustomerID}
	for _, it := range o.Items {
		cs.FarmerIDs = append(cs.FarmerIDs, it.FarmerID)
	}
	return cs
}

func (cs cachedStatus) accessibleBy(actor orders.Actor) bool {
	if actor.Role == identity.RoleAdmin || actor.ID == cs.CustomerID {
		return true
	}
	for _, id := range cs.FarmerIDs {
		if id == actor.ID {
			return true
		}
	}
	return false
}

// getOrderStatus serves from the Redis cache when possible; stale reads are
// acceptable here. Access is gated the same way as getOrder on both paths.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	if b, err := h.Redis.Get(ctx, key).Bytes(); err == nil {
		var cs cachedStatus
		if json.Unmarshal(b, &cs) == nil {
			if !cs.accessibleBy(actorFrom(r)) {
				writeErr(w, http.StatusForbidden, "not your order")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": cs.Status})
			return
		}
	}

	o, err := h.Service.Get(ctx, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if !h.Service.CanAccess(o, actorFrom(r)) {
		writeErr(w, http.StatusForbidden, "not your order")
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"status": o.Status})
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Service.ListByCustomer(ctx, actorFrom(r).ID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) farmerOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Service.ListByFarmer(ctx, actorFrom(r).ID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type updateStatusReq struct {
	Status string `json:"status" validate:"required"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req updateStatusReq
	if !decode(w, r, &req) {
		return
	}
	status := orders.Status(req.Status)
	if !status.Valid() {
		writeErr(w, http.StatusBadRequest, "unknown status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Service.Transition(ctx, id, status, actorFrom(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(statusCacheEntry(o))
	if err := h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.WithError(err).Debug("order status cache write failed")
	}
}
