package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nimbus-billing/nimbus-billing/internal/platform/httpx"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

// PDFRenderer converts a printable invoice into a PDF document.
type PDFRenderer interface {
	RenderInvoicePDF(ctx context.Context, data *PrintData) ([]byte, error)
}

type Handler struct {
	logger    *slog.Logger
	service   *Service
	pdf       PDFRenderer
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, pdf PDFRenderer) *Handler {
	return &Handler{logger: logger, service: service, pdf: pdf, validator: validator.New()}
}

// MountRoutes registers invoice routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(httpx.RequireAuth)
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleDetail)
		r.Put("/", h.handleUpdate)
		r.Patch("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Post("/status", h.handleStatus)
		r.Get("/print", h.handlePrint)
		r.Get("/pdf", h.handlePDF)
		r.Delete("/items/{itemID}", h.handleDeleteItem)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ListFilter{Ordering: OrderClause(query.Get("ordering"))}
	if v := query.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := query.Get("customer_id"); v != "" {
		customerID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid customer_id")
			return
		}
		filter.CustomerID = &customerID
	}
	if v := query.Get("date_from"); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid date_from. Use YYYY-MM-DD format")
			return
		}
		filter.DateFrom = &from
	}
	if v := query.Get("date_to"); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid date_to. Use YYYY-MM-DD format")
			return
		}
		filter.DateTo = &to
	}
	if v := query.Get("search"); v != "" {
		filter.Search = &v
	}

	page, perPage := shared.PageParams(r, 20, 100)
	filter.Limit = perPage
	filter.Offset = shared.Offset(page, perPage)

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.Summarize(r.Context(), filter)
	if err != nil {
		h.logger.Error("summarize invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.OK(w, http.StatusOK, map[string]any{
		"results":    NewListItems(items),
		"pagination": shared.NewPagination(page, perPage, total),
		"summary":    listSummary{TotalInvoices: total, TotalAmount: sum},
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	input := CreateInput{
		CustomerID:     req.Customer,
		TaxRate:        req.TaxRate,
		DiscountAmount: req.DiscountAmount,
		Notes:          req.Notes,
		Terms:          req.TermsAndConditions,
		Items:          toItemInputs(req.Items),
	}
	var ok bool
	if input.InvoiceDate, ok = parseDateField(w, req.InvoiceDate, "invoice_date"); !ok {
		return
	}
	if input.DueDate, ok = parseDateField(w, req.DueDate, "due_date"); !ok {
		return
	}

	detail, err := h.service.Create(r.Context(), input, actorID(r))
	if err != nil {
		h.respondInvoiceError(w, err, "create invoice")
		return
	}

	httpx.OKMessage(w, http.StatusCreated, "Invoice created successfully", toDetailResponse(detail))
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid invoice ID")
		return
	}

	detail, err := h.service.Detail(r.Context(), id)
	if err != nil {
		h.respondInvoiceError(w, err, "invoice detail")
		return
	}

	httpx.OK(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid invoice ID")
		return
	}

	var req updateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	input := UpdateInput{
		Status:         req.Status,
		TaxRate:        req.TaxRate,
		DiscountAmount: req.DiscountAmount,
		Notes:          req.Notes,
		Terms:          req.TermsAndConditions,
	}
	if req.Items != nil {
		input.Items = toItemInputs(req.Items)
	}
	var ok bool
	if input.InvoiceDate, ok = parseDateField(w, req.InvoiceDate, "invoice_date"); !ok {
		return
	}
	if req.DueDate != nil && *req.DueDate == "" {
		input.ClearDueDate = true
	} else if input.DueDate, ok = parseDateField(w, req.DueDate, "due_date"); !ok {
		return
	}

	detail, err := h.service.Update(r.Context(), id, input, actorID(r))
	if err != nil {
		h.respondInvoiceError(w, err, "update invoice")
		return
	}

	httpx.OKMessage(w, http.StatusOK, "Invoice updated successfully", toDetailResponse(detail))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid invoice ID")
		return
	}

	if err := h.service.Delete(r.Context(), id, actorID(r)); err != nil {
		h.respondInvoiceError(w, err, "delete invoice")
		return
	}

	httpx.OKMessage(w, http.StatusOK, "Invoice deleted successfully", nil)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid invoice ID")
		return
	}

	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	detail, err := h.service.UpdateStatus(r.Context(), id, req.Status, actorID(r))
	if err != nil {
		h.respondInvoiceError(w, err, "update invoice status")
		return
	}

	httpx.OKMessage(w, http.StatusOK, fmt.Sprintf("Invoice marked as %s", req.Status), toDetailResponse(detail))
}

func (h *Handler) handlePrint(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid invoice ID")
		return
	}

	data, err := h.service.Print(r.Context(), id)
	if err != nil {
		h.respondInvoiceError(w, err, "print invoice")
		return
	}

	httpx.OK(w, http.StatusOK, toPrintResponse(data))
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid invoice ID")
		return
	}
	if h.pdf == nil {
		httpx.Error(w, http.StatusBadGateway, httpx.CodeError, "PDF rendering is not available")
		return
	}

	data, err := h.service.Print(r.Context(), id)
	if err != nil {
		h.respondInvoiceError(w, err, "print invoice")
		return
	}

	document, err := h.pdf.RenderInvoicePDF(r.Context(), data)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.Any("error", err))
		httpx.Error(w, http.StatusBadGateway, httpx.CodeError, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", data.Invoice.InvoiceNumber+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(document)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid invoice ID")
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeError, "Invalid item ID")
		return
	}

	detail, err := h.service.DeleteItem(r.Context(), id, itemID, actorID(r))
	if err != nil {
		h.respondInvoiceError(w, err, "delete invoice item")
		return
	}

	httpx.OKMessage(w, http.StatusOK, "Item removed successfully", toDetailResponse(detail))
}

func (h *Handler) respondInvoiceError(w http.ResponseWriter, err error, op string) {
	var vErr *ValidationError
	var rErr *RuleError
	switch {
	case errors.As(err, &vErr):
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, vErr.Message)
	case errors.As(err, &rErr):
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvoice, rErr.Message)
	case errors.Is(err, shared.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, httpx.CodeNotFound, "Invoice not found")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toItemInputs(items []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, ItemInput{
			ItemName:    item.ItemName,
			Description: item.Description,
			Unit:        item.Unit,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			SortOrder:   item.SortOrder,
		})
	}
	return out
}

// parseDateField parses an optional YYYY-MM-DD value, writing the error
// response itself when the value is malformed.
func parseDateField(w http.ResponseWriter, value *string, field string) (*time.Time, bool) {
	if value == nil || *value == "" {
		return nil, true
	}
	parsed, err := time.Parse(dateLayout, *value)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid "+field+". Use YYYY-MM-DD format")
		return nil, false
	}
	return &parsed, true
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
	if fe.Field() == "Items" {
		return "Invoice must have at least one item"
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required."
	case "max":
		return fe.Field() + " is too long."
	default:
		return fe.Field() + " is invalid."
	}
}
