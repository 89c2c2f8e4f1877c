package invoices

import "github.com/shopspring/decimal"

// Totals carries the monetary summary of an invoice. All values are
// exact decimals rounded to two places.
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	GrandTotal     decimal.Decimal
	DiscountAmount decimal.Decimal
}

// LineTotal computes quantity times rate rounded to two decimal places.
func LineTotal(quantity, rate decimal.Decimal) decimal.Decimal {
	return quantity.Mul(rate).Round(2)
}

// ComputeTotals derives an invoice's monetary summary from its items.
// Each line is rounded before summing, tax is applied to the subtotal and
// rounded once, and the grand total is clamped at zero so an oversized
// discount can never produce a negative invoice.
func ComputeTotals(items []InvoiceItem, taxRate, discountAmount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for i := range items {
		subtotal = subtotal.Add(items[i].Total)
	}

	taxAmount := decimal.Zero
	if taxRate.IsPositive() {
		taxAmount = subtotal.Mul(taxRate).Shift(-2).Round(2)
	}

	grandTotal := subtotal.Add(taxAmount).Sub(discountAmount)
	if grandTotal.IsNegative() {
		grandTotal = decimal.Zero
	}

	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      taxAmount,
		GrandTotal:     grandTotal,
		DiscountAmount: discountAmount,
	}
}
