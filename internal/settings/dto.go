package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

type updateSettingsRequest struct {
	CompanyName        *string          `json:"company_name" validate:"omitempty,max=255"`
	CompanyAddress     *string          `json:"company_address"`
	PhoneNumber        *string          `json:"phone_number" validate:"omitempty,max=15"`
	Email              *string          `json:"email" validate:"omitempty,email,max=255"`
	Website            *string          `json:"website" validate:"omitempty,max=255"`
	GSTIN              *string          `json:"gstin" validate:"omitempty,max=15"`
	DefaultTaxRate     *decimal.Decimal `json:"default_tax_rate"`
	TaxLabel           *string          `json:"tax_label" validate:"omitempty,max=50"`
	InvoicePrefix      *string          `json:"invoice_prefix" validate:"omitempty,max=10"`
	InvoiceStartNumber *int64           `json:"invoice_start_number"`
	InvoiceTerms       *string          `json:"invoice_terms"`
	InvoiceFooter      *string          `json:"invoice_footer"`
	PaymentDueDays     *int             `json:"payment_due_days"`
	BankName           *string          `json:"bank_name" validate:"omitempty,max=255"`
	AccountNumber      *string          `json:"account_number" validate:"omitempty,max=50"`
	IFSCCode           *string          `json:"ifsc_code" validate:"omitempty,max=20"`
}

type settingsResponse struct {
	ID                 int64           `json:"id"`
	CompanyName        string          `json:"company_name"`
	CompanyAddress     string          `json:"company_address"`
	PhoneNumber        string          `json:"phone_number"`
	Email              string          `json:"email"`
	Website            *string         `json:"website"`
	GSTIN              *string         `json:"gstin"`
	DefaultTaxRate     decimal.Decimal `json:"default_tax_rate"`
	TaxLabel           string          `json:"tax_label"`
	InvoicePrefix      string          `json:"invoice_prefix"`
	InvoiceStartNumber int64           `json:"invoice_start_number"`
	InvoiceTerms       string          `json:"invoice_terms"`
	InvoiceFooter      *string         `json:"invoice_footer"`
	PaymentDueDays     int             `json:"payment_due_days"`
	BankName           *string         `json:"bank_name"`
	AccountNumber      *string         `json:"account_number"`
	IFSCCode           *string         `json:"ifsc_code"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type publicSettingsResponse struct {
	CompanyName    string  `json:"company_name"`
	CompanyAddress string  `json:"company_address"`
	PhoneNumber    string  `json:"phone_number"`
	Email          string  `json:"email"`
	Website        *string `json:"website"`
	GSTIN          *string `json:"gstin"`
	TaxLabel       string  `json:"tax_label"`
}

func toSettingsResponse(s *Settings) settingsResponse {
	return settingsResponse{
		ID:                 s.ID,
		CompanyName:        s.CompanyName,
		CompanyAddress:     s.CompanyAddress,
		PhoneNumber:        s.PhoneNumber,
		Email:              s.Email,
		Website:            s.Website,
		GSTIN:              s.GSTIN,
		DefaultTaxRate:     s.DefaultTaxRate,
		TaxLabel:           s.TaxLabel,
		InvoicePrefix:      s.InvoicePrefix,
		InvoiceStartNumber: s.InvoiceStartNumber,
		InvoiceTerms:       s.InvoiceTerms,
		InvoiceFooter:      s.InvoiceFooter,
		PaymentDueDays:     s.PaymentDueDays,
		BankName:           s.BankName,
		AccountNumber:      s.AccountNumber,
		IFSCCode:           s.IFSCCode,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toPublicResponse(s *Settings) publicSettingsResponse {
	return publicSettingsResponse{
		CompanyName:    s.CompanyName,
		CompanyAddress: s.CompanyAddress,
		PhoneNumber:    s.PhoneNumber,
		Email:          s.Email,
		Website:        s.Website,
		GSTIN:          s.GSTIN,
		TaxLabel:       s.TaxLabel,
	}
}
