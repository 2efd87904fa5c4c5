package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/farmdirect/marketplace/internal/authn"
	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/inventory"
	"github.com/farmdirect/marketplace/internal/lock"
	"github.com/farmdirect/marketplace/internal/orders"
	"github.com/farmdirect/marketplace/internal/token"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decode unmarshals and validates a request body; a false return means the
// response has already been written.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeDomainErr maps expected domain outcomes to status codes. Anything
// unrecognized is a real fault and turns into a 500.
func writeDomainErr(w http.ResponseWriter, err error) {
	var invalidCode *authn.InvalidCodeError
	var illegal *orders.IllegalTransitionError

	switch {
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, token.ErrInvalidOrExpired):
		writeErr(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, identity.ErrDuplicateIdentity),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInsufficientReservation):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, lock.ErrNotObtained):
		writeErr(w, http.StatusConflict, "resource busy, try again")
	case errors.Is(err, authn.ErrAttemptsExhausted):
		writeErr(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &invalidCode),
		errors.Is(err, authn.ErrNoChallenge),
		errors.Is(err, authn.ErrCodeExpired),
		errors.Is(err, identity.ErrRoleNotAllowed),
		errors.Is(err, orders.ErrNoItems),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrDuplicateItem),
		errors.Is(err, inventory.ErrNegativeQuantity):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrForbidden):
		writeErr(w, http.StatusForbidden, err.Error())
	case errors.As(err, &illegal):
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, authn.ErrDeliveryFailed):
		writeErr(w, http.StatusBadGateway, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
