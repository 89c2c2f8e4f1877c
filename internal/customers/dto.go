package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

type createCustomerRequest struct {
	CustomerName string  `json:"customer_name" validate:"required,max=255"`
	PhoneNumber  string  `json:"phone_number" validate:"required,max=17"`
	Email        *string `json:"email" validate:"omitempty,email,max=255"`
	Address      *string `json:"address"`
	City         *string `json:"city" validate:"omitempty,max=100"`
	State        *string `json:"state" validate:"omitempty,max=100"`
	Pincode      *string `json:"pincode" validate:"omitempty,max=10"`
	GSTIN        *string `json:"gstin" validate:"omitempty,max=15"`
	Notes        *string `json:"notes"`
}

type updateCustomerRequest struct {
	CustomerName *string `json:"customer_name" validate:"omitempty,max=255"`
	PhoneNumber  *string `json:"phone_number" validate:"omitempty,max=17"`
	Email        *string `json:"email" validate:"omitempty,email,max=255"`
	Address      *string `json:"address"`
	City         *string `json:"city" validate:"omitempty,max=100"`
	State        *string `json:"state" validate:"omitempty,max=100"`
	Pincode      *string `json:"pincode" validate:"omitempty,max=10"`
	GSTIN        *string `json:"gstin" validate:"omitempty,max=15"`
	Notes        *string `json:"notes"`
	IsActive     *bool   `json:"is_active"`
}

// Response is the full customer payload. Exported so the invoice detail
// endpoint can embed the same shape under customer_details.
type Response struct {
	ID            int64           `json:"id"`
	CustomerName  string          `json:"customer_name"`
	PhoneNumber   string          `json:"phone_number"`
	Email         *string         `json:"email"`
	Address       *string         `json:"address"`
	City          *string         `json:"city"`
	State         *string         `json:"state"`
	Pincode       *string         `json:"pincode"`
	GSTIN         *string         `json:"gstin"`
	IsActive      bool            `json:"is_active"`
	TotalInvoices int             `json:"total_invoices"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Notes         *string         `json:"notes"`
	FullAddress   string          `json:"full_address"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ListItem is the compact customer row used by list endpoints and the
// dashboard top-customer block.
type ListItem struct {
	ID            int64           `json:"id"`
	CustomerName  string          `json:"customer_name"`
	PhoneNumber   string          `json:"phone_number"`
	Email         *string         `json:"email"`
	TotalInvoices int             `json:"total_invoices"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

type invoiceSummaryResponse struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	Status        string          `json:"status"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	CreatedAt     time.Time       `json:"created_at"`
}

type statsFigures struct {
	TotalInvoices  int             `json:"total_invoices"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AverageInvoice decimal.Decimal `json:"average_invoice_amount"`
}

type statsResponse struct {
	Customer       Response                 `json:"customer"`
	RecentInvoices []invoiceSummaryResponse `json:"recent_invoices"`
	Stats          statsFigures             `json:"stats"`
}

// NewResponse builds the full customer payload.
func NewResponse(c *Customer) Response {
	return Response{
		ID:            c.ID,
		CustomerName:  c.CustomerName,
		PhoneNumber:   c.PhoneNumber,
		Email:         c.Email,
		Address:       c.Address,
		City:          c.City,
		State:         c.State,
		Pincode:       c.Pincode,
		GSTIN:         c.GSTIN,
		IsActive:      c.IsActive,
		TotalInvoices: c.TotalInvoices,
		TotalAmount:   c.TotalAmount,
		Notes:         c.Notes,
		FullAddress:   c.FullAddress(),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// NewListItems builds compact rows for a slice of customers.
func NewListItems(list []Customer) []ListItem {
	out := make([]ListItem, 0, len(list))
	for i := range list {
		c := &list[i]
		out = append(out, ListItem{
			ID:            c.ID,
			CustomerName:  c.CustomerName,
			PhoneNumber:   c.PhoneNumber,
			Email:         c.Email,
			TotalInvoices: c.TotalInvoices,
			TotalAmount:   c.TotalAmount,
			IsActive:      c.IsActive,
			CreatedAt:     c.CreatedAt,
		})
	}
	return out
}

func toInvoiceSummaries(list []InvoiceSummary) []invoiceSummaryResponse {
	out := make([]invoiceSummaryResponse, 0, len(list))
	for _, summary := range list {
		out = append(out, invoiceSummaryResponse{
			ID:            summary.ID,
			InvoiceNumber: summary.InvoiceNumber,
			InvoiceDate:   summary.InvoiceDate.Format("2006-01-02"),
			Status:        summary.Status,
			GrandTotal:    summary.GrandTotal,
			CreatedAt:     summary.CreatedAt,
		})
	}
	return out
}
