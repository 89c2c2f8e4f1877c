package invoices

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

var staffUser = &shared.CurrentUser{ID: 1, Email: "admin@example.com", Name: "Admin", Role: "admin", IsStaff: true}

func newHandlerRouter(t *testing.T) (*invoiceFixture, chi.Router) {
	t.Helper()
	fix := newInvoiceFixture(t)
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), fix.service, nil)
	router := chi.NewRouter()
	router.Route("/invoices", handler.MountRoutes)
	return fix, router
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any, user *shared.CurrentUser) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req = req.WithContext(shared.ContextWithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func createPayload() map[string]any {
	return map[string]any{
		"customer":        7,
		"tax_rate":        "10",
		"discount_amount": "50",
		"items": []map[string]any{
			{"item_name": "Steel Rod", "quantity": "5", "rate": "250.00"},
			{"item_name": "Binding Wire", "quantity": "1", "rate": "149.99"},
		},
	}
}

func TestHandlerRequiresAuthentication(t *testing.T) {
	_, router := newHandlerRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/invoices", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerCreateReturnsComputedTotals(t *testing.T) {
	_, router := newHandlerRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/invoices", createPayload(), staffUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Invoice created successfully", body["message"])

	data := body["data"].(map[string]any)
	require.Equal(t, "INV-500000", data["invoice_number"])
	require.Equal(t, "draft", data["status"])
	require.Equal(t, "1399.99", data["subtotal"])
	require.Equal(t, "140", data["tax_amount"])
	require.Equal(t, "1489.99", data["grand_total"])
	require.Len(t, data["items"], 2)

	details := data["customer_details"].(map[string]any)
	require.Equal(t, "Acme Traders", details["customer_name"])
}

func TestHandlerCreateRequiresItems(t *testing.T) {
	_, router := newHandlerRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/invoices", map[string]any{"customer": 7}, staffUser)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	errBody := body["error"].(map[string]any)
	require.Equal(t, "validation_error", errBody["code"])
	require.Equal(t, "Invoice must have at least one item", errBody["message"])
}

func TestHandlerListEnvelope(t *testing.T) {
	_, router := newHandlerRouter(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/invoices", createPayload(), staffUser)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/invoices", nil, staffUser)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]any)
	require.Len(t, data["results"], 2)

	pagination := data["pagination"].(map[string]any)
	require.Equal(t, float64(2), pagination["total"])

	summary := data["summary"].(map[string]any)
	require.Equal(t, float64(2), summary["total_invoices"])
	require.Equal(t, "2979.98", summary["total_amount"])
}

func TestHandlerStatusTransitions(t *testing.T) {
	_, router := newHandlerRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/invoices", createPayload(), staffUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/invoices/1/status", map[string]any{"status": "sent"}, staffUser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Invoice marked as sent", decodeBody(t, rec)["message"])

	rec = doJSON(t, router, http.MethodPost, "/invoices/1/status", map[string]any{"status": "draft"}, staffUser)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeBody(t, rec)["error"].(map[string]any)
	require.Equal(t, "invoice_error", errBody["code"])
	require.Equal(t, "Invalid status. Must be: sent, paid, or cancelled", errBody["message"])

	rec = doJSON(t, router, http.MethodPost, "/invoices/42/status", map[string]any{"status": "sent"}, staffUser)
	require.Equal(t, http.StatusNotFound, rec.Code)
	errBody = decodeBody(t, rec)["error"].(map[string]any)
	require.Equal(t, "Invoice not found", errBody["message"])
}

func TestHandlerPrintPayload(t *testing.T) {
	_, router := newHandlerRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/invoices", createPayload(), staffUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/invoices/1/print", nil, staffUser)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]any)
	company := data["company"].(map[string]any)
	require.Equal(t, "Standard Steels & Hardware", company["company_name"])
	invoice := data["invoice"].(map[string]any)
	require.Equal(t, "INV-500000", invoice["invoice_number"])
}

func TestHandlerPDFUnavailableWithoutRenderer(t *testing.T) {
	_, router := newHandlerRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/invoices", createPayload(), staffUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/invoices/1/pdf", nil, staffUser)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}
