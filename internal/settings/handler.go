package settings

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nimbus-billing/nimbus-billing/internal/platform/httpx"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the settings routes. The public route is the
// only one reachable without a session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/company", h.handleGet)
	r.Put("/company", h.handleUpdate)
	r.Patch("/company", h.handleUpdate)
	r.Get("/company/public", h.handlePublic)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if shared.UserFromContext(r.Context()) == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	settings, err := h.service.Get(r.Context())
	if err != nil {
		h.logger.Error("load settings", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeSettings, "Failed to retrieve company settings")
		return
	}

	httpx.OK(w, http.StatusOK, toSettingsResponse(settings))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	if err := shared.RequireStaff(user); err != nil {
		if errors.Is(err, shared.ErrPermissionDenied) {
			httpx.Error(w, http.StatusForbidden, httpx.CodePermissionDenied, "You do not have permission to update company settings")
			return
		}
		httpx.RespondError(w, err)
		return
	}

	var req updateSettingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Validation failed")
		return
	}

	settings, err := h.service.Update(r.Context(), UpdateInput{
		CompanyName:        req.CompanyName,
		CompanyAddress:     req.CompanyAddress,
		PhoneNumber:        req.PhoneNumber,
		Email:              req.Email,
		Website:            req.Website,
		GSTIN:              req.GSTIN,
		DefaultTaxRate:     req.DefaultTaxRate,
		TaxLabel:           req.TaxLabel,
		InvoicePrefix:      req.InvoicePrefix,
		InvoiceStartNumber: req.InvoiceStartNumber,
		InvoiceTerms:       req.InvoiceTerms,
		InvoiceFooter:      req.InvoiceFooter,
		PaymentDueDays:     req.PaymentDueDays,
		BankName:           req.BankName,
		AccountNumber:      req.AccountNumber,
		IFSCCode:           req.IFSCCode,
	}, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrTaxRateRange):
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Tax rate must be between 0 and 100.")
		case errors.Is(err, ErrStartNumberNegative):
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Invoice start number must be positive.")
		case errors.Is(err, ErrDueDaysNegative):
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Payment due days must be positive.")
		default:
			h.logger.Error("update settings", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, httpx.CodeSettings, "Failed to update company settings")
		}
		return
	}

	httpx.OKMessage(w, http.StatusOK, "Company settings updated successfully", toSettingsResponse(settings))
}

func (h *Handler) handlePublic(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Public(r.Context())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, httpx.CodeSettingsNotFound, "Company settings not configured")
			return
		}
		h.logger.Error("load public settings", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeSettings, "Failed to retrieve company settings")
		return
	}

	httpx.OK(w, http.StatusOK, toPublicResponse(settings))
}
