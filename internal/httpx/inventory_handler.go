package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/inventory"
	"github.com/farmdirect/marketplace/internal/lock"
	"github.com/farmdirect/marketplace/internal/orders"
	"github.com/farmdirect/marketplace/internal/token"
)

type InventoryHandler struct {
	Ledger  *inventory.Ledger
	Catalog orders.Catalog
	Locks   *lock.Locker
}

func (h *InventoryHandler) Register(r *chi.Mux, issuer *token.Issuer) {
	r.Get("/products", h.listProducts)
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(issuer))
		r.Get("/products/{id}/inventory", h.getInventory)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(identity.RoleAdmin, identity.RoleFarmer))
			r.Post("/products/{id}/inventory/adjust", h.adjust)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(identity.RoleAdmin))
			r.Post("/products/{id}/inventory/confirm", h.confirm)
			r.Post("/products/{id}/inventory/release", h.release)
		})
	})
}

func (h *InventoryHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// getInventory is a display read: no lock, possibly stale.
func (h *InventoryHandler) getInventory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Ledger.Ensure(ctx, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type adjustReq struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req adjustReq
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor := actorFrom(r)
	if actor.Role == identity.RoleFarmer {
		p, err := h.Catalog.Get(ctx, id)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if p.FarmerID != actor.ID {
			writeErr(w, http.StatusForbidden, "not your product")
			return
		}
	}

	h.withLock(w, r, id, func(ctx context.Context) (*inventory.Record, error) {
		return h.Ledger.Adjust(ctx, id, req.Delta, actor.ID, req.Reason)
	})
}

type quantityReq struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// confirm finalizes part of a reservation out of band; the order state
// machine never calls it on its own.
func (h *InventoryHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.mutateReserved(w, r, h.Ledger.Confirm)
}

func (h *InventoryHandler) release(w http.ResponseWriter, r *http.Request) {
	h.mutateReserved(w, r, h.Ledger.Release)
}

func (h *InventoryHandler) mutateReserved(w http.ResponseWriter, r *http.Request,
	op func(context.Context, uuid.UUID, int, uuid.UUID) (*inventory.Record, error)) {

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req quantityReq
	if !decode(w, r, &req) {
		return
	}

	actor := actorFrom(r)
	h.withLock(w, r, id, func(ctx context.Context) (*inventory.Record, error) {
		return op(ctx, id, req.Quantity, actor.ID)
	})
}

// withLock runs a ledger mutation inside the product's critical section and
// writes the result.
func (h *InventoryHandler) withLock(w http.ResponseWriter, r *http.Request, productID uuid.UUID,
	fn func(ctx context.Context) (*inventory.Record, error)) {

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	handle, err := h.Locks.Acquire(ctx, "product:"+productID.String())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	defer func() { _ = h.Locks.Release(ctx, handle) }()

	rec, err := fn(ctx)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
