package customers

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer carries the denormalised invoice totals alongside the
// contact record. TotalInvoices and TotalAmount are maintained by the
// invoicing flow and must never be written by customer endpoints.
type Customer struct {
	ID            int64
	CustomerName  string
	PhoneNumber   string
	Email         *string
	Address       *string
	City          *string
	State         *string
	Pincode       *string
	GSTIN         *string
	Notes         *string
	IsActive      bool
	TotalInvoices int
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullAddress joins the address parts that are present.
func (c *Customer) FullAddress() string {
	var parts []string
	if c.Address != nil && *c.Address != "" {
		parts = append(parts, *c.Address)
	}
	if c.City != nil && *c.City != "" {
		parts = append(parts, *c.City)
	}
	if c.State != nil && *c.State != "" {
		parts = append(parts, *c.State)
	}
	if c.Pincode != nil && *c.Pincode != "" {
		parts = append(parts, "PIN: "+*c.Pincode)
	}
	if len(parts) == 0 {
		return "No address provided"
	}
	return strings.Join(parts, ", ")
}

// InvoiceSummary is the slice of an invoice shown on customer statistics.
type InvoiceSummary struct {
	ID            int64
	InvoiceNumber string
	InvoiceDate   time.Time
	Status        string
	GrandTotal    decimal.Decimal
	CreatedAt     time.Time
}
