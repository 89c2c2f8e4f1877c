package customers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

// MountRoutes registers customer routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(httpx.RequireAuth)
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/search", h.handleSearch)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Put("/", h.handleUpdate)
		r.Patch("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Get("/stats", h.handleStats)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ListFilter{Ordering: OrderClause(query.Get("ordering"))}
	if v := query.Get("search"); v != "" {
		filter.Search = &v
	}
	if v := query.Get("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}
	if v := query.Get("city"); v != "" {
		filter.City = &v
	}
	if v := query.Get("state"); v != "" {
		filter.State = &v
	}

	page, perPage := shared.PageParams(r, 20, 100)
	filter.Limit = perPage
	filter.Offset = shared.Offset(page, perPage)

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.OK(w, http.StatusOK, map[string]any{
		"results":    NewListItems(items),
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	customer, err := h.service.Create(r.Context(), CreateInput{
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Pincode:      req.Pincode,
		GSTIN:        req.GSTIN,
		Notes:        req.Notes,
	}, actorID(r))
	if err != nil {
		h.respondCustomerError(w, err, "create customer")
		return
	}

	httpx.OKMessage(w, http.StatusCreated, "Customer created successfully", NewResponse(customer))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid customer ID")
		return
	}

	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.OK(w, http.StatusOK, NewResponse(customer))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid customer ID")
		return
	}

	var req updateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	customer, err := h.service.Update(r.Context(), id, UpdateInput{
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Pincode:      req.Pincode,
		GSTIN:        req.GSTIN,
		Notes:        req.Notes,
		IsActive:     req.IsActive,
	}, actorID(r))
	if err != nil {
		h.respondCustomerError(w, err, "update customer")
		return
	}

	httpx.OKMessage(w, http.StatusOK, "Customer updated successfully", NewResponse(customer))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid customer ID")
		return
	}

	deactivated, err := h.service.Delete(r.Context(), id, actorID(r))
	if err != nil {
		h.respondCustomerError(w, err, "delete customer")
		return
	}

	if deactivated {
		httpx.OKMessage(w, http.StatusOK, "Customer deactivated successfully (has existing invoices)", nil)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "Customer deleted successfully", nil)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid customer ID")
		return
	}

	stats, err := h.service.Stats(r.Context(), id)
	if err != nil {
		h.respondCustomerError(w, err, "customer stats")
		return
	}

	httpx.OK(w, http.StatusOK, statsResponse{
		Customer:       NewResponse(stats.Customer),
		RecentInvoices: toInvoiceSummaries(stats.RecentInvoices),
		Stats: statsFigures{
			TotalInvoices:  stats.TotalInvoices,
			TotalAmount:    stats.TotalAmount,
			AverageInvoice: stats.AverageInvoice,
		},
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("search customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.OK(w, http.StatusOK, map[string]any{
		"count":   len(items),
		"results": NewListItems(items),
	})
}

func (h *Handler) respondCustomerError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrInvalidPhone):
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Phone number must be 9-15 digits. Format: +999999999")
	case errors.Is(err, ErrEmailInUse):
		httpx.Error(w, http.StatusBadRequest, httpx.CodeCustomer, "A customer with this email already exists")
	default:
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorID(r *http.Request) int64 {
	if user := shared.UserFromContext(r.Context()); user != nil {
		return user.ID
	}
	return 0
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return "Invalid request payload"
	}
	fe := fieldErrors[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fe.Field() + " is too long."
	default:
		return fe.Field() + " is invalid."
	}
}
