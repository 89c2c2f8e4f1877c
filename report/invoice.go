package report

import (
	"context"
	"fmt"

	"github.com/nimbus-billing/nimbus-billing/internal/invoices"
	"github.com/nimbus-billing/nimbus-billing/internal/view"
)

// InvoiceRenderer turns invoice print payloads into PDF documents by
// rendering the embedded invoice template and handing the HTML to
// Gotenberg.
type InvoiceRenderer struct {
	client *Client
	engine *view.Engine
}

// NewInvoiceRenderer wires the renderer.
func NewInvoiceRenderer(client *Client, engine *view.Engine) *InvoiceRenderer {
	return &InvoiceRenderer{client: client, engine: engine}
}

// RenderInvoicePDF renders one invoice into a PDF document.
func (r *InvoiceRenderer) RenderInvoicePDF(ctx context.Context, data *invoices.PrintData) ([]byte, error) {
	html, err := r.engine.RenderDocument("invoice.html", data)
	if err != nil {
		return nil, fmt.Errorf("report: render invoice document: %w", err)
	}
	pdf, err := r.client.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("report: convert invoice %s: %w", data.Invoice.InvoiceNumber, err)
	}
	return pdf, nil
}
