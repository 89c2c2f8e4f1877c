package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/customers"
)

type itemRequest struct {
	ItemName    string          `json:"item_name" validate:"required,max=255"`
	Description *string         `json:"description"`
	Unit        string          `json:"unit" validate:"omitempty,max=20"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	SortOrder   int             `json:"sort_order" validate:"omitempty,min=0"`
}

type createInvoiceRequest struct {
	Customer           int64            `json:"customer" validate:"required"`
	InvoiceDate        *string          `json:"invoice_date"`
	DueDate            *string          `json:"due_date"`
	TaxRate            *decimal.Decimal `json:"tax_rate"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount"`
	Notes              *string          `json:"notes"`
	TermsAndConditions *string          `json:"terms_and_conditions"`
	Items              []itemRequest    `json:"items" validate:"required,min=1,dive"`
}

type updateInvoiceRequest struct {
	InvoiceDate        *string          `json:"invoice_date"`
	DueDate            *string          `json:"due_date"`
	Status             *string          `json:"status"`
	TaxRate            *decimal.Decimal `json:"tax_rate"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount"`
	Notes              *string          `json:"notes"`
	TermsAndConditions *string          `json:"terms_and_conditions"`
	Items              []itemRequest    `json:"items" validate:"omitempty,min=1,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type itemResponse struct {
	ID          int64           `json:"id"`
	ItemName    string          `json:"item_name"`
	Description *string         `json:"description"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Total       decimal.Decimal `json:"total"`
	SortOrder   int             `json:"sort_order"`
}

type invoiceResponse struct {
	ID                 int64               `json:"id"`
	InvoiceNumber      string              `json:"invoice_number"`
	Customer           int64               `json:"customer"`
	CustomerDetails    *customers.Response `json:"customer_details,omitempty"`
	CustomerName       string              `json:"customer_name"`
	CustomerPhone      string              `json:"customer_phone"`
	InvoiceDate        string              `json:"invoice_date"`
	DueDate            *string             `json:"due_date"`
	Status             string              `json:"status"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	TaxRate            decimal.Decimal     `json:"tax_rate"`
	TaxAmount          decimal.Decimal     `json:"tax_amount"`
	DiscountAmount     decimal.Decimal     `json:"discount_amount"`
	GrandTotal         decimal.Decimal     `json:"grand_total"`
	Notes              *string             `json:"notes"`
	TermsAndConditions *string             `json:"terms_and_conditions"`
	Items              []itemResponse      `json:"items"`
	ItemCount          int                 `json:"item_count"`
	CreatedBy          *int64              `json:"created_by"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// ListItem is the compact invoice row used by list endpoints and the
// dashboard recent-invoice block.
type ListItem struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	InvoiceDate   string          `json:"invoice_date"`
	Status        string          `json:"status"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	ItemCount     int             `json:"item_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

type listSummary struct {
	TotalInvoices int             `json:"total_invoices"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type printCompany struct {
	CompanyName    string  `json:"company_name"`
	CompanyAddress string  `json:"company_address"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email"`
	GSTIN          *string `json:"gstin"`
	TaxLabel       string  `json:"tax_label"`
	InvoiceTerms   string  `json:"invoice_terms"`
	InvoiceFooter  *string `json:"invoice_footer"`
	BankName       *string `json:"bank_name"`
	AccountNumber  *string `json:"account_number"`
	IFSCCode       *string `json:"ifsc_code"`
}

type printResponse struct {
	Invoice invoiceResponse `json:"invoice"`
	Company printCompany    `json:"company"`
}

const dateLayout = "2006-01-02"

func toItemResponses(items []InvoiceItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for i := range items {
		item := &items[i]
		out = append(out, itemResponse{
			ID:          item.ID,
			ItemName:    item.ItemName,
			Description: item.Description,
			Unit:        item.Unit,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Total:       item.Total,
			SortOrder:   item.SortOrder,
		})
	}
	return out
}

func toInvoiceResponse(invoice *Invoice, customer *customers.Customer) invoiceResponse {
	resp := invoiceResponse{
		ID:                 invoice.ID,
		InvoiceNumber:      invoice.InvoiceNumber,
		Customer:           invoice.CustomerID,
		CustomerName:       invoice.CustomerName,
		CustomerPhone:      invoice.CustomerPhone,
		InvoiceDate:        invoice.InvoiceDate.Format(dateLayout),
		Status:             string(invoice.Status),
		Subtotal:           invoice.Subtotal,
		TaxRate:            invoice.TaxRate,
		TaxAmount:          invoice.TaxAmount,
		DiscountAmount:     invoice.DiscountAmount,
		GrandTotal:         invoice.GrandTotal,
		Notes:              invoice.Notes,
		TermsAndConditions: invoice.TermsAndConditions,
		Items:              toItemResponses(invoice.Items),
		ItemCount:          invoice.ItemCount,
		CreatedBy:          invoice.CreatedBy,
		CreatedAt:          invoice.CreatedAt,
		UpdatedAt:          invoice.UpdatedAt,
	}
	if invoice.DueDate != nil {
		due := invoice.DueDate.Format(dateLayout)
		resp.DueDate = &due
	}
	if customer != nil {
		details := customers.NewResponse(customer)
		resp.CustomerDetails = &details
	}
	return resp
}

func toDetailResponse(detail *Detail) invoiceResponse {
	return toInvoiceResponse(detail.Invoice, detail.Customer)
}

// NewListItems builds compact rows for a slice of invoices.
func NewListItems(list []Invoice) []ListItem {
	out := make([]ListItem, 0, len(list))
	for i := range list {
		invoice := &list[i]
		out = append(out, ListItem{
			ID:            invoice.ID,
			InvoiceNumber: invoice.InvoiceNumber,
			CustomerName:  invoice.CustomerName,
			InvoiceDate:   invoice.InvoiceDate.Format(dateLayout),
			Status:        string(invoice.Status),
			GrandTotal:    invoice.GrandTotal,
			ItemCount:     invoice.ItemCount,
			CreatedAt:     invoice.CreatedAt,
		})
	}
	return out
}

func toPrintResponse(data *PrintData) printResponse {
	return printResponse{
		Invoice: toInvoiceResponse(data.Invoice, data.Customer),
		Company: printCompany{
			CompanyName:    data.Company.CompanyName,
			CompanyAddress: data.Company.CompanyAddress,
			Phone:          data.Company.PhoneNumber,
			Email:          data.Company.Email,
			GSTIN:          data.Company.GSTIN,
			TaxLabel:       data.Company.TaxLabel,
			InvoiceTerms:   data.Company.InvoiceTerms,
			InvoiceFooter:  data.Company.InvoiceFooter,
			BankName:       data.Company.BankName,
			AccountNumber:  data.Company.AccountNumber,
			IFSCCode:       data.Company.IFSCCode,
		},
	}
}
