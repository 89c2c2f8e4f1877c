package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the company configuration singleton. Exactly one row
// exists, always with ID 1.
type Settings struct {
	ID                 int64
	CompanyName        string
	CompanyAddress     string
	PhoneNumber        string
	Email              string
	Website            *string
	GSTIN              *string
	DefaultTaxRate     decimal.Decimal
	TaxLabel           string
	InvoicePrefix      string
	InvoiceStartNumber int64
	InvoiceTerms       string
	InvoiceFooter      *string
	PaymentDueDays     int
	BankName           *string
	AccountNumber      *string
	IFSCCode           *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Defaults returns the settings used to seed a fresh installation.
func Defaults() Settings {
	return Settings{
		ID:                 1,
		CompanyName:        "Standard Steels & Hardware",
		CompanyAddress:     "123 Industrial Area, Steel City",
		PhoneNumber:        "+91 12345 67890",
		Email:              "info@standardsteels.com",
		DefaultTaxRate:     decimal.RequireFromString("18.00"),
		TaxLabel:           "GST",
		InvoicePrefix:      "INV-",
		InvoiceStartNumber: 500000,
		InvoiceTerms:       "Terms & Conditions Apply | This is a computer generated invoice",
		PaymentDueDays:     30,
	}
}
