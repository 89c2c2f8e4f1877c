package invoices

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func line(quantity, rate string) InvoiceItem {
	q := decimal.RequireFromString(quantity)
	r := decimal.RequireFromString(rate)
	return InvoiceItem{Quantity: q, Rate: r, Total: LineTotal(q, r)}
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.RequireFromString(want)), "want %s got %s", want, got)
}

func TestLineTotalRoundsHalfUp(t *testing.T) {
	requireAmount(t, "0.03", LineTotal(decimal.RequireFromString("0.5"), decimal.RequireFromString("0.05")))
	requireAmount(t, "99.99", LineTotal(decimal.NewFromInt(3), decimal.RequireFromString("33.33")))
	requireAmount(t, "3.30", LineTotal(decimal.RequireFromString("0.33"), decimal.RequireFromString("9.99")))
}

func TestComputeTotalsWithTaxAndDiscount(t *testing.T) {
	items := []InvoiceItem{
		line("5", "250.00"),
		line("1", "149.99"),
	}

	totals := ComputeTotals(items, decimal.NewFromInt(10), decimal.NewFromInt(50))

	requireAmount(t, "1399.99", totals.Subtotal)
	requireAmount(t, "140.00", totals.TaxAmount)
	requireAmount(t, "1489.99", totals.GrandTotal)
}

func TestComputeTotalsZeroTaxRate(t *testing.T) {
	items := []InvoiceItem{line("2", "100.00")}

	totals := ComputeTotals(items, decimal.Zero, decimal.RequireFromString("25.00"))

	requireAmount(t, "200.00", totals.Subtotal)
	require.True(t, totals.TaxAmount.IsZero())
	requireAmount(t, "175.00", totals.GrandTotal)
}

func TestComputeTotalsTaxRoundsOnce(t *testing.T) {
	// 10.00 at 1.25% is exactly 0.125 and must round away from zero.
	items := []InvoiceItem{line("1", "10.00")}

	totals := ComputeTotals(items, decimal.RequireFromString("1.25"), decimal.Zero)

	requireAmount(t, "0.13", totals.TaxAmount)
	requireAmount(t, "10.13", totals.GrandTotal)
}

func TestComputeTotalsClampsOversizedDiscount(t *testing.T) {
	items := []InvoiceItem{line("1", "100.00")}

	totals := ComputeTotals(items, decimal.Zero, decimal.NewFromInt(150))

	require.True(t, totals.GrandTotal.IsZero())
}

func TestComputeTotalsNoItems(t *testing.T) {
	totals := ComputeTotals(nil, decimal.NewFromInt(18), decimal.Zero)

	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.GrandTotal.IsZero())
}
