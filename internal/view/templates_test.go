package view

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/invoices"
	"github.com/nimbus-billing/nimbus-billing/internal/settings"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err, "document templates should parse")
	require.NotNil(t, engine)
}

func TestRenderInvoiceDocument(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	company := settings.Defaults()
	city := "Steel City"
	data := invoices.PrintData{
		Invoice: &invoices.Invoice{
			InvoiceNumber: "INV-500001",
			CustomerName:  "Acme Traders",
			InvoiceDate:   time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC),
			Status:        invoices.StatusSent,
			Subtotal:      decimal.RequireFromString("148990.50"),
			TaxRate:       decimal.RequireFromString("10"),
			TaxAmount:     decimal.RequireFromString("14899.05"),
			GrandTotal:    decimal.RequireFromString("163889.55"),
			Items: []invoices.InvoiceItem{
				{ItemName: "Steel rods", Unit: "ton", Quantity: decimal.RequireFromString("3"), Rate: decimal.RequireFromString("49663.50"), Total: decimal.RequireFromString("148990.50")},
			},
		},
		Customer: &customers.Customer{CustomerName: "Acme Traders", PhoneNumber: "+919876543210", City: &city},
		Company:  &company,
	}

	html, err := engine.RenderDocument("invoice.html", &data)
	require.NoError(t, err)

	require.Contains(t, html, "INV-500001")
	require.Contains(t, html, "Standard Steels &amp; Hardware")
	require.Contains(t, html, "Acme Traders")
	require.Contains(t, html, "14 Mar 2025")
	require.Contains(t, html, "GST (10%)")
	require.Contains(t, html, "1,48,990.50")
	require.Contains(t, html, "Terms &amp; Conditions Apply")
}
