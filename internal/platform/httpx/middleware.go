package httpx

import (
	"net/http"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

// RequireAuth rejects requests without an authenticated user in the
// context. Mount it on route groups that sit behind login.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.UserFromContext(r.Context()) == nil {
			Error(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
