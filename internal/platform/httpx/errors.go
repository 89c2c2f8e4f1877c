package httpx

import (
	"errors"
	"net/http"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

// RespondError maps shared sentinel errors onto the failure envelope. Feature
// handlers translate their domain errors first and fall back to this.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound, "The requested resource was not found.")
	case errors.Is(err, shared.ErrUnauthorized):
		Error(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication credentials were not provided.")
	case errors.Is(err, shared.ErrPermissionDenied):
		Error(w, http.StatusForbidden, CodePermissionDenied, "You do not have permission to perform this action.")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusBadRequest, CodeValidation, "Invalid email or password.")
	default:
		Error(w, http.StatusInternalServerError, CodeError, "An internal server error occurred.")
	}
}
