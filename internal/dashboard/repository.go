package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/invoices"
	"github.com/nimbus-billing/nimbus-billing/internal/platform/db"
)

// Figures summarises a set of invoices.
type Figures struct {
	TotalInvoices int
	TotalAmount   decimal.Decimal
}

// Repository defines the read-only queries behind the dashboard. All of
// them run against the live invoice and customer tables; nothing here
// mutates state.
type Repository interface {
	Totals(ctx context.Context, from, to *time.Time) (Figures, error)
	StatusBreakdown(ctx context.Context) (map[string]Figures, error)
	RecentInvoices(ctx context.Context, limit int) ([]invoices.Invoice, error)
	TopCustomers(ctx context.Context, limit int) ([]customers.Customer, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Totals counts invoices dated inside [from, to). Either bound may be nil
// to leave that side open.
func (r *repository) Totals(ctx context.Context, from, to *time.Time) (Figures, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(grand_total), 0) FROM invoices`
	var args []interface{}
	argPos := 1
	if from != nil {
		query += fmt.Sprintf(" WHERE invoice_date >= $%d", argPos)
		args = append(args, pgtype.Date{Time: *from, Valid: true})
		argPos++
	}
	if to != nil {
		if from == nil {
			query += " WHERE"
		} else {
			query += " AND"
		}
		query += fmt.Sprintf(" invoice_date < $%d", argPos)
		args = append(args, pgtype.Date{Time: *to, Valid: true})
	}

	var count int
	var amount pgtype.Numeric
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count, &amount); err != nil {
		return Figures{}, fmt.Errorf("dashboard: totals: %w", err)
	}
	total, err := db.NumericToDecimal(amount)
	if err != nil {
		return Figures{}, err
	}
	return Figures{TotalInvoices: count, TotalAmount: total}, nil
}

func (r *repository) StatusBreakdown(ctx context.Context) (map[string]Figures, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(grand_total), 0)
		FROM invoices
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("dashboard: status breakdown: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Figures)
	for rows.Next() {
		var status string
		var count int
		var amount pgtype.Numeric
		if err := rows.Scan(&status, &count, &amount); err != nil {
			return nil, err
		}
		total, err := db.NumericToDecimal(amount)
		if err != nil {
			return nil, err
		}
		out[status] = Figures{TotalInvoices: count, TotalAmount: total}
	}
	return out, rows.Err()
}

func (r *repository) RecentInvoices(ctx context.Context, limit int) ([]invoices.Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_number, customer_name, invoice_date, status, grand_total,
			(SELECT COUNT(*) FROM invoice_items WHERE invoice_items.invoice_id = invoices.id),
			created_at
		FROM invoices
		ORDER BY created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard: recent invoices: %w", err)
	}
	defer rows.Close()

	var out []invoices.Invoice
	for rows.Next() {
		var (
			invoice     invoices.Invoice
			invoiceDate pgtype.Date
			status      string
			grandTotal  pgtype.Numeric
			createdAt   pgtype.Timestamptz
		)
		err := rows.Scan(&invoice.ID, &invoice.InvoiceNumber, &invoice.CustomerName,
			&invoiceDate, &status, &grandTotal, &invoice.ItemCount, &createdAt)
		if err != nil {
			return nil, err
		}
		invoice.InvoiceDate = invoiceDate.Time
		invoice.Status = invoices.Status(status)
		invoice.CreatedAt = createdAt.Time
		invoice.GrandTotal, err = db.NumericToDecimal(grandTotal)
		if err != nil {
			return nil, err
		}
		out = append(out, invoice)
	}
	return out, rows.Err()
}

func (r *repository) TopCustomers(ctx context.Context, limit int) ([]customers.Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_name, phone_number, email, total_invoices, total_amount, is_active, created_at
		FROM customers
		WHERE is_active = TRUE
		ORDER BY total_amount DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard: top customers: %w", err)
	}
	defer rows.Close()

	var out []customers.Customer
	for rows.Next() {
		var (
			customer    customers.Customer
			email       pgtype.Text
			totalAmount pgtype.Numeric
			createdAt   pgtype.Timestamptz
		)
		err := rows.Scan(&customer.ID, &customer.CustomerName, &customer.PhoneNumber, &email,
			&customer.TotalInvoices, &totalAmount, &customer.IsActive, &createdAt)
		if err != nil {
			return nil, err
		}
		if email.Valid {
			value := email.String
			customer.Email = &value
		}
		customer.CreatedAt = createdAt.Time
		customer.TotalAmount, err = db.NumericToDecimal(totalAmount)
		if err != nil {
			return nil, err
		}
		out = append(out, customer)
	}
	return out, rows.Err()
}
