package invoices

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/platform/db"
	"github.com/nimbus-billing/nimbus-billing/internal/settings"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

// ErrNumberTaken is returned when an allocated invoice number collides
// with a concurrently created invoice. Callers retry the allocation once.
var ErrNumberTaken = errors.New("invoices: invoice number already taken")

// ListFilter narrows and pages the invoice list. Ordering must be a
// value produced by OrderClause.
type ListFilter struct {
	Status     *string
	CustomerID *int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     *string
	Ordering   string
	Limit      int
	Offset     int
}

// Repository defines persistence operations for invoices and their items.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	SumGrandTotal(ctx context.Context, filter ListFilter) (decimal.Decimal, error)
	Create(ctx context.Context, invoice Invoice) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	NextInvoiceNumber(ctx context.Context) (string, error)
	ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
	InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error
	ReplaceItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error
	DeleteItem(ctx context.Context, itemID int64) error
	RecalcCustomerAggregates(ctx context.Context, customerID int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		repoTx := &repository{db: tx, pool: r.pool}
		return fn(ctx, repoTx)
	})
}

// item_count rides along on every invoice row so list endpoints never
// fetch items just to count them.
const invoiceColumns = `id, invoice_number, customer_id, customer_name, customer_phone, invoice_date, due_date, status, subtotal, tax_rate, tax_amount, discount_amount, grand_total, notes, terms_and_conditions, created_by, created_at, updated_at, (SELECT COUNT(*) FROM invoice_items WHERE invoice_items.invoice_id = invoices.id) AS item_count`

const itemColumns = `id, invoice_id, item_name, description, unit, quantity, rate, total, sort_order, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func buildFilter(filter ListFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Status != nil && *filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filter.CustomerID)
		argPos++
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("invoice_date >= $%d", argPos))
		args = append(args, pgtype.Date{Time: *filter.DateFrom, Valid: true})
		argPos++
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("invoice_date <= $%d", argPos))
		args = append(args, pgtype.Date{Time: *filter.DateTo, Valid: true})
		argPos++
	}
	if filter.Search != nil && *filter.Search != "" {
		pattern := "%" + *filter.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(invoice_number ILIKE $%d OR customer_name ILIKE $%d OR customer_phone ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}
	return whereClause, args
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	whereClause, args := buildFilter(filter)

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM invoices %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoices: count: %w", err)
	}

	ordering := filter.Ordering
	if ordering == "" {
		ordering = "created_at DESC"
	}

	argPos := len(args) + 1
	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		invoiceColumns, whereClause, ordering, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, invoice)
	}
	return out, total, rows.Err()
}

func (r *repository) SumGrandTotal(ctx context.Context, filter ListFilter) (decimal.Decimal, error) {
	whereClause, args := buildFilter(filter)

	var sum pgtype.Numeric
	query := fmt.Sprintf("SELECT COALESCE(SUM(grand_total), 0) FROM invoices %s", whereClause)
	if err := r.db.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("invoices: sum: %w", err)
	}
	return db.NumericToDecimal(sum)
}

func (r *repository) Create(ctx context.Context, invoice Invoice) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, customer_id, customer_name, customer_phone, invoice_date, due_date, status, subtotal, tax_rate, tax_amount, discount_amount, grand_total, notes, terms_and_conditions, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		RETURNING id`,
		invoice.InvoiceNumber, invoice.CustomerID, invoice.CustomerName, invoice.CustomerPhone,
		pgtype.Date{Time: invoice.InvoiceDate, Valid: true}, datePtr(invoice.DueDate), string(invoice.Status),
		db.DecimalToNumeric(invoice.Subtotal), db.DecimalToNumeric(invoice.TaxRate),
		db.DecimalToNumeric(invoice.TaxAmount), db.DecimalToNumeric(invoice.DiscountAmount),
		db.DecimalToNumeric(invoice.GrandTotal), textPtr(invoice.Notes), textPtr(invoice.TermsAndConditions),
		int8Ptr(invoice.CreatedBy),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "invoices_invoice_number_key") {
			return 0, ErrNumberTaken
		}
		return 0, fmt.Errorf("invoices: create: %w", err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	set := ""
	args := make([]interface{}, 0, len(updates)+1)
	argNum := 1
	for column, value := range updates {
		if d, ok := value.(decimal.Decimal); ok {
			value = db.DecimalToNumeric(d)
		}
		if set != "" {
			set += ", "
		}
		set += column + " = $" + strconv.Itoa(argNum)
		args = append(args, value)
		argNum++
	}
	set += ", updated_at = NOW()"
	args = append(args, id)

	tag, err := r.db.Exec(ctx, `UPDATE invoices SET `+set+` WHERE id = $`+strconv.Itoa(argNum), args...)
	if err != nil {
		return fmt.Errorf("invoices: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("invoices: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// NextInvoiceNumber allocates the next number in the configured sequence.
// It locks the settings row first so concurrent allocations inside
// transactions serialize; run it inside WithTx.
func (r *repository) NextInvoiceNumber(ctx context.Context) (string, error) {
	var prefix string
	var start int64
	err := r.db.QueryRow(ctx, `SELECT invoice_prefix, invoice_start_number FROM company_settings WHERE id = 1 FOR UPDATE`).Scan(&prefix, &start)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("invoices: lock numbering: %w", err)
		}
		defaults := settings.Defaults()
		prefix, start = defaults.InvoicePrefix, defaults.InvoiceStartNumber
	}

	var last pgtype.Int8
	err = r.db.QueryRow(ctx, `
		SELECT MAX(suffix::bigint)
		FROM (
			SELECT substr(invoice_number, length($1) + 1) AS suffix
			FROM invoices
			WHERE invoice_number LIKE $1 || '%'
		) numbered
		WHERE suffix ~ '^[0-9]+$'`,
		prefix,
	).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("invoices: next number: %w", err)
	}

	next := start
	if last.Valid {
		next = last.Int64 + 1
	}
	return prefix + strconv.FormatInt(next, 10), nil
}

func (r *repository) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM invoice_items WHERE invoice_id = $1 ORDER BY sort_order, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list items: %w", err)
	}
	defer rows.Close()

	var out []InvoiceItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *repository) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	for i := range items {
		item := &items[i]
		_, err := r.db.Exec(ctx, `
			INSERT INTO invoice_items (invoice_id, item_name, description, unit, quantity, rate, total, sort_order, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
			invoiceID, item.ItemName, textPtr(item.Description), item.Unit,
			db.DecimalToNumeric(item.Quantity), db.DecimalToNumeric(item.Rate),
			db.DecimalToNumeric(item.Total), item.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("invoices: insert item: %w", err)
		}
	}
	return nil
}

func (r *repository) ReplaceItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("invoices: clear items: %w", err)
	}
	return r.InsertItems(ctx, invoiceID, items)
}

func (r *repository) DeleteItem(ctx context.Context, itemID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("invoices: delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecalcCustomerAggregates rewrites the customer's denormalized invoice
// count and amount from the invoices table. Every status counts; call it
// inside the same transaction as the invoice mutation.
func (r *repository) RecalcCustomerAggregates(ctx context.Context, customerID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE customers SET
			total_invoices = stats.invoice_count,
			total_amount = stats.invoice_amount,
			updated_at = NOW()
		FROM (
			SELECT COUNT(*) AS invoice_count, COALESCE(SUM(grand_total), 0) AS invoice_amount
			FROM invoices
			WHERE customer_id = $1
		) stats
		WHERE customers.id = $1`,
		customerID,
	)
	if err != nil {
		return fmt.Errorf("invoices: recalc customer aggregates: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var (
		invoice        Invoice
		invoiceDate    pgtype.Date
		dueDate        pgtype.Date
		status         string
		subtotal       pgtype.Numeric
		taxRate        pgtype.Numeric
		taxAmount      pgtype.Numeric
		discountAmount pgtype.Numeric
		grandTotal     pgtype.Numeric
		notes          pgtype.Text
		terms          pgtype.Text
		createdBy      pgtype.Int8
		createdAt      pgtype.Timestamptz
		updatedAt      pgtype.Timestamptz
	)
	err := row.Scan(&invoice.ID, &invoice.InvoiceNumber, &invoice.CustomerID, &invoice.CustomerName,
		&invoice.CustomerPhone, &invoiceDate, &dueDate, &status, &subtotal, &taxRate, &taxAmount,
		&discountAmount, &grandTotal, &notes, &terms, &createdBy, &createdAt, &updatedAt, &invoice.ItemCount)
	if err != nil {
		return Invoice{}, err
	}

	invoice.InvoiceDate = invoiceDate.Time
	if dueDate.Valid {
		due := dueDate.Time
		invoice.DueDate = &due
	}
	invoice.Status = Status(status)
	invoice.Notes = stringPtr(notes)
	invoice.TermsAndConditions = stringPtr(terms)
	if createdBy.Valid {
		by := createdBy.Int64
		invoice.CreatedBy = &by
	}
	invoice.CreatedAt = createdAt.Time
	invoice.UpdatedAt = updatedAt.Time

	for _, pair := range []struct {
		src pgtype.Numeric
		dst *decimal.Decimal
	}{
		{subtotal, &invoice.Subtotal},
		{taxRate, &invoice.TaxRate},
		{taxAmount, &invoice.TaxAmount},
		{discountAmount, &invoice.DiscountAmount},
		{grandTotal, &invoice.GrandTotal},
	} {
		value, err := db.NumericToDecimal(pair.src)
		if err != nil {
			return Invoice{}, err
		}
		*pair.dst = value
	}
	return invoice, nil
}

func scanItem(row rowScanner) (InvoiceItem, error) {
	var (
		item        InvoiceItem
		description pgtype.Text
		quantity    pgtype.Numeric
		rate        pgtype.Numeric
		total       pgtype.Numeric
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&item.ID, &item.InvoiceID, &item.ItemName, &description, &item.Unit,
		&quantity, &rate, &total, &item.SortOrder, &createdAt, &updatedAt)
	if err != nil {
		return InvoiceItem{}, err
	}

	item.Description = stringPtr(description)
	item.CreatedAt = createdAt.Time
	item.UpdatedAt = updatedAt.Time

	for _, pair := range []struct {
		src pgtype.Numeric
		dst *decimal.Decimal
	}{
		{quantity, &item.Quantity},
		{rate, &item.Rate},
		{total, &item.Total},
	} {
		value, err := db.NumericToDecimal(pair.src)
		if err != nil {
			return InvoiceItem{}, err
		}
		*pair.dst = value
	}
	return item, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func stringPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	val := t.String
	return &val
}

func textPtr(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func datePtr(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func int8Ptr(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
