// Package httpx provides HTTP helpers for the envelope every API response uses.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope is the success wrapper: {"success": true, "message": ..., "data": ...}.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorBody carries machine-readable error details inside the failure wrapper.
type ErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"status_code"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// Error codes shared across handlers.
const (
	CodeError            = "error"
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeUnauthorized     = "unauthorized"
	CodePermissionDenied = "permission_denied"
	CodeInvoice          = "invoice_error"
	CodeCustomer         = "customer_error"
	CodeSettings         = "settings_error"
	CodeSettingsNotFound = "settings_not_found"
)

// JSON writes a raw JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes a success envelope around data.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// OKMessage writes a success envelope with a human-readable message.
func OKMessage(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{
		Message:    message,
		Code:       code,
		StatusCode: status,
	}})
}

// DecodeJSON decodes the request body into target, rejecting unknown structure noise.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		return err
	}
	// A second token means trailing garbage after the JSON document.
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
