package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/orders"
	"github.com/farmdirect/marketplace/internal/token"
)

type ctxKey int

const actorKey ctxKey = iota

// bearerToken reads the access token from the Authorization header or the
// accessToken cookie (the storefront uses the cookie).
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("accessToken"); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth verifies the access token and stores the actor in the request
// context.
func RequireAuth(issuer *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := issuer.Verify(bearerToken(r), token.KindAccess)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			actor := orders.Actor{ID: claims.UserID(), Role: identity.Role(claims.Role)}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

func actorFrom(r *http.Request) orders.Actor {
	actor, _ := r.Context().Value(actorKey).(orders.Actor)
	return actor
}

// RequireRole gates a subtree to the listed roles. Must sit inside
// RequireAuth.
func RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := actorFrom(r)
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeErr(w, http.StatusForbidden, "insufficient role")
		})
	}
}
