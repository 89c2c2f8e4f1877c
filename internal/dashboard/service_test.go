package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/invoices"
)

type totalsCall struct {
	from, to string
}

type stubRepo struct {
	mu          sync.Mutex
	totalsCalls []totalsCall
	totals      map[totalsCall]Figures
	breakdown   map[string]Figures
	recent      []invoices.Invoice
	recentLimit int
	top         []customers.Customer
	topLimit    int
}

func windowKey(from, to *time.Time) totalsCall {
	key := totalsCall{from: "open", to: "open"}
	if from != nil {
		key.from = from.Format("2006-01-02")
	}
	if to != nil {
		key.to = to.Format("2006-01-02")
	}
	return key
}

func (s *stubRepo) Totals(_ context.Context, from, to *time.Time) (Figures, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := windowKey(from, to)
	s.totalsCalls = append(s.totalsCalls, key)
	return s.totals[key], nil
}

func (s *stubRepo) StatusBreakdown(context.Context) (map[string]Figures, error) {
	return s.breakdown, nil
}

func (s *stubRepo) RecentInvoices(_ context.Context, limit int) ([]invoices.Invoice, error) {
	s.mu.Lock()
	s.recentLimit = limit
	s.mu.Unlock()
	return s.recent, nil
}

func (s *stubRepo) TopCustomers(_ context.Context, limit int) ([]customers.Customer, error) {
	s.mu.Lock()
	s.topLimit = limit
	s.mu.Unlock()
	return s.top, nil
}

func newOverviewFixture() (*Service, *stubRepo) {
	repo := &stubRepo{
		totals: map[totalsCall]Figures{
			{from: "open", to: "open"}:             {TotalInvoices: 42, TotalAmount: decimal.RequireFromString("90500.25")},
			{from: "2025-03-01", to: "open"}:       {TotalInvoices: 6, TotalAmount: decimal.RequireFromString("12000.00")},
			{from: "2025-02-01", to: "2025-03-01"}: {TotalInvoices: 9, TotalAmount: decimal.RequireFromString("18500.50")},
		},
		breakdown: map[string]Figures{
			"draft": {TotalInvoices: 3, TotalAmount: decimal.RequireFromString("4500.00")},
			"paid":  {TotalInvoices: 30, TotalAmount: decimal.RequireFromString("71000.25")},
		},
		recent: []invoices.Invoice{{ID: 9, InvoiceNumber: "INV-500008", CustomerName: "Acme Traders"}},
		top:    []customers.Customer{{ID: 7, CustomerName: "Acme Traders"}},
	}
	service := NewService(repo)
	service.now = func() time.Time {
		return time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)
	}
	return service, repo
}

func TestOverviewQueriesMonthWindows(t *testing.T) {
	service, repo := newOverviewFixture()

	overview, err := service.Overview(context.Background())
	require.NoError(t, err)

	require.Len(t, repo.totalsCalls, 3)
	require.Contains(t, repo.totalsCalls, totalsCall{from: "open", to: "open"})
	require.Contains(t, repo.totalsCalls, totalsCall{from: "2025-03-01", to: "open"})
	require.Contains(t, repo.totalsCalls, totalsCall{from: "2025-02-01", to: "2025-03-01"})

	require.Equal(t, 42, overview.Overall.TotalInvoices)
	require.Equal(t, 6, overview.ThisMonth.TotalInvoices)
	require.Equal(t, 9, overview.LastMonth.TotalInvoices)
	require.True(t, overview.LastMonth.TotalAmount.Equal(decimal.RequireFromString("18500.50")))
}

func TestOverviewZeroFillsStatusBreakdown(t *testing.T) {
	service, _ := newOverviewFixture()

	overview, err := service.Overview(context.Background())
	require.NoError(t, err)

	require.Len(t, overview.StatusBreakdown, 4)
	require.Equal(t, 3, overview.StatusBreakdown["draft"].TotalInvoices)
	require.Equal(t, 30, overview.StatusBreakdown["paid"].TotalInvoices)
	require.Equal(t, 0, overview.StatusBreakdown["sent"].TotalInvoices)
	require.Equal(t, 0, overview.StatusBreakdown["cancelled"].TotalInvoices)
	require.True(t, overview.StatusBreakdown["sent"].TotalAmount.IsZero())
}

func TestOverviewUsesFixedBlockLimits(t *testing.T) {
	service, repo := newOverviewFixture()

	overview, err := service.Overview(context.Background())
	require.NoError(t, err)

	require.Equal(t, 10, repo.recentLimit)
	require.Equal(t, 5, repo.topLimit)
	require.Len(t, overview.RecentInvoices, 1)
	require.Equal(t, "INV-500008", overview.RecentInvoices[0].InvoiceNumber)
	require.Len(t, overview.TopCustomers, 1)
}

func TestOverviewJanuaryWindowRollsYear(t *testing.T) {
	service, repo := newOverviewFixture()
	service.now = func() time.Time {
		return time.Date(2025, time.January, 2, 8, 0, 0, 0, time.UTC)
	}
	repo.totals = map[totalsCall]Figures{}

	_, err := service.Overview(context.Background())
	require.NoError(t, err)

	require.Contains(t, repo.totalsCalls, totalsCall{from: "2025-01-01", to: "open"})
	require.Contains(t, repo.totalsCalls, totalsCall{from: "2024-12-01", to: "2025-01-01"})
}
