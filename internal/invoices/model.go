package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the invoice lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Locked reports whether the invoice can no longer be edited or have
// items removed. Paid and cancelled invoices are immutable.
func (s Status) Locked() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Units lists the accepted measurement units for invoice items.
var Units = []string{"piece", "sq meter", "meter", "kg", "ton", "box", "set"}

// DefaultUnit is applied when an item omits its unit.
const DefaultUnit = "piece"

// ValidUnit reports whether u is an accepted measurement unit.
func ValidUnit(u string) bool {
	for _, unit := range Units {
		if u == unit {
			return true
		}
	}
	return false
}

// Invoice model. CustomerName and CustomerPhone are cached from the
// customer at creation time so historical invoices keep the details the
// customer had when billed.
type Invoice struct {
	ID                 int64
	InvoiceNumber      string
	CustomerID         int64
	CustomerName       string
	CustomerPhone      string
	InvoiceDate        time.Time
	DueDate            *time.Time
	Status             Status
	Subtotal           decimal.Decimal
	TaxRate            decimal.Decimal
	TaxAmount          decimal.Decimal
	DiscountAmount     decimal.Decimal
	GrandTotal         decimal.Decimal
	Notes              *string
	TermsAndConditions *string
	CreatedBy          *int64
	ItemCount          int
	Items              []InvoiceItem
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InvoiceItem model. Total is always quantity times rate rounded to two
// decimal places; it is computed server-side and never taken from input.
type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	ItemName    string
	Description *string
	Unit        string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	Total       decimal.Decimal
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
