package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/invoices"
)

const (
	recentInvoiceLimit = 10
	topCustomerLimit   = 5
)

// Overview is the aggregate snapshot behind the dashboard endpoint.
type Overview struct {
	Overall         Figures
	ThisMonth       Figures
	LastMonth       Figures
	StatusBreakdown map[string]Figures
	RecentInvoices  []invoices.Invoice
	TopCustomers    []customers.Customer
}

// Service assembles dashboard overviews.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the dashboard service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Overview loads every dashboard block concurrently. Month windows are
// half-open: this month is [monthStart, now-open), last month is
// [lastMonthStart, monthStart).
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	var overview Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		figures, err := s.repo.Totals(ctx, nil, nil)
		if err != nil {
			return err
		}
		overview.Overall = figures
		return nil
	})
	g.Go(func() error {
		figures, err := s.repo.Totals(ctx, &monthStart, nil)
		if err != nil {
			return err
		}
		overview.ThisMonth = figures
		return nil
	})
	g.Go(func() error {
		figures, err := s.repo.Totals(ctx, &lastMonthStart, &monthStart)
		if err != nil {
			return err
		}
		overview.LastMonth = figures
		return nil
	})
	g.Go(func() error {
		breakdown, err := s.repo.StatusBreakdown(ctx)
		if err != nil {
			return err
		}
		overview.StatusBreakdown = fillStatuses(breakdown)
		return nil
	})
	g.Go(func() error {
		recent, err := s.repo.RecentInvoices(ctx, recentInvoiceLimit)
		if err != nil {
			return err
		}
		overview.RecentInvoices = recent
		return nil
	})
	g.Go(func() error {
		top, err := s.repo.TopCustomers(ctx, topCustomerLimit)
		if err != nil {
			return err
		}
		overview.TopCustomers = top
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &overview, nil
}

// fillStatuses guarantees a row for every known status so the payload
// shape does not depend on which statuses happen to exist.
func fillStatuses(breakdown map[string]Figures) map[string]Figures {
	out := make(map[string]Figures, 4)
	for _, status := range []invoices.Status{
		invoices.StatusDraft, invoices.StatusSent, invoices.StatusPaid, invoices.StatusCancelled,
	} {
		out[string(status)] = breakdown[string(status)]
	}
	return out
}
