package dashboard

import (
	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/invoices"
)

type figuresPayload struct {
	TotalInvoices int             `json:"total_invoices"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type statusFigures struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type overviewResponse struct {
	Overall         figuresPayload           `json:"overall"`
	ThisMonth       figuresPayload           `json:"this_month"`
	LastMonth       figuresPayload           `json:"last_month"`
	StatusBreakdown map[string]statusFigures `json:"status_breakdown"`
	RecentInvoices  []invoices.ListItem      `json:"recent_invoices"`
	TopCustomers    []customers.ListItem     `json:"top_customers"`
}

func toOverviewResponse(overview *Overview) overviewResponse {
	breakdown := make(map[string]statusFigures, len(overview.StatusBreakdown))
	for status, figures := range overview.StatusBreakdown {
		breakdown[status] = statusFigures{Count: figures.TotalInvoices, Amount: figures.TotalAmount}
	}
	return overviewResponse{
		Overall:         toFigures(overview.Overall),
		ThisMonth:       toFigures(overview.ThisMonth),
		LastMonth:       toFigures(overview.LastMonth),
		StatusBreakdown: breakdown,
		RecentInvoices:  invoices.NewListItems(overview.RecentInvoices),
		TopCustomers:    customers.NewListItems(overview.TopCustomers),
	}
}

func toFigures(figures Figures) figuresPayload {
	return figuresPayload{TotalInvoices: figures.TotalInvoices, TotalAmount: figures.TotalAmount}
}
