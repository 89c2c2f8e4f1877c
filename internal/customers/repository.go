package customers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbus-billing/nimbus-billing/internal/platform/db"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

// ListFilter narrows and pages the customer list. Ordering must be a
// value produced by OrderClause.
type ListFilter struct {
	Search   *string
	IsActive *bool
	City     *string
	State    *string
	Ordering string
	Limit    int
	Offset   int
}

// Repository defines persistence operations for customers.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, int, error)
	Search(ctx context.Context, query string, limit int) ([]Customer, error)
	Create(ctx context.Context, customer Customer) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error)
	RecentInvoices(ctx context.Context, customerID int64, limit int) ([]InvoiceSummary, error)
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

const customerColumns = `id, customer_name, phone_number, email, address, city, state, pincode, gstin, notes, is_active, total_invoices, total_amount, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *filter.IsActive)
		argPos++
	}
	if filter.City != nil && *filter.City != "" {
		conditions = append(conditions, fmt.Sprintf("city ILIKE $%d", argPos))
		args = append(args, *filter.City)
		argPos++
	}
	if filter.State != nil && *filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state ILIKE $%d", argPos))
		args = append(args, *filter.State)
		argPos++
	}
	if filter.Search != nil && *filter.Search != "" {
		pattern := "%" + *filter.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(customer_name ILIKE $%d OR phone_number ILIKE $%d OR email ILIKE $%d)", argPos, argPos, argPos))
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

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customers %s", whereClause)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("customers: count: %w", err)
	}

	ordering := filter.Ordering
	if ordering == "" {
		ordering = "created_at DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		customerColumns, whereClause, ordering, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("customers: list: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, customer)
	}
	return out, total, rows.Err()
}

func (r *repository) Search(ctx context.Context, query string, limit int) ([]Customer, error) {
	sql := `SELECT ` + customerColumns + ` FROM customers WHERE is_active = TRUE`
	var args []interface{}
	if query != "" {
		sql += ` AND (customer_name ILIKE $1 OR phone_number ILIKE $1 OR email ILIKE $1) ORDER BY created_at DESC LIMIT $2`
		args = append(args, "%"+query+"%", limit)
	} else {
		sql += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("customers: search: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, customer)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, customer Customer) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO customers (customer_name, phone_number, email, address, city, state, pincode, gstin, notes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id`,
		customer.CustomerName, customer.PhoneNumber, textPtr(customer.Email), textPtr(customer.Address),
		textPtr(customer.City), textPtr(customer.State), textPtr(customer.Pincode), textPtr(customer.GSTIN),
		textPtr(customer.Notes), customer.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("customers: create: %w", err)
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
		if set != "" {
			set += ", "
		}
		set += column + " = $" + strconv.Itoa(argNum)
		args = append(args, value)
		argNum++
	}
	set += ", updated_at = NOW()"
	args = append(args, id)

	tag, err := r.db.Exec(ctx, `UPDATE customers SET `+set+` WHERE id = $`+strconv.Itoa(argNum), args...)
	if err != nil {
		return fmt.Errorf("customers: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("customers: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE lower(email) = lower($1) AND id <> $2)`,
		email, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("customers: email lookup: %w", err)
	}
	return exists, nil
}

func (r *repository) RecentInvoices(ctx context.Context, customerID int64, limit int) ([]InvoiceSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_number, invoice_date, status, grand_total, created_at
		FROM invoices
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		customerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("customers: recent invoices: %w", err)
	}
	defer rows.Close()

	var out []InvoiceSummary
	for rows.Next() {
		var (
			summary     InvoiceSummary
			invoiceDate pgtype.Date
			grandTotal  pgtype.Numeric
			createdAt   pgtype.Timestamptz
		)
		if err := rows.Scan(&summary.ID, &summary.InvoiceNumber, &invoiceDate, &summary.Status, &grandTotal, &createdAt); err != nil {
			return nil, err
		}
		summary.InvoiceDate = invoiceDate.Time
		summary.CreatedAt = createdAt.Time
		summary.GrandTotal, err = db.NumericToDecimal(grandTotal)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var (
		customer    Customer
		email       pgtype.Text
		address     pgtype.Text
		city        pgtype.Text
		state       pgtype.Text
		pincode     pgtype.Text
		gstin       pgtype.Text
		notes       pgtype.Text
		totalAmount pgtype.Numeric
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&customer.ID, &customer.CustomerName, &customer.PhoneNumber, &email, &address,
		&city, &state, &pincode, &gstin, &notes, &customer.IsActive,
		&customer.TotalInvoices, &totalAmount, &createdAt, &updatedAt)
	if err != nil {
		return Customer{}, err
	}
	customer.Email = stringPtr(email)
	customer.Address = stringPtr(address)
	customer.City = stringPtr(city)
	customer.State = stringPtr(state)
	customer.Pincode = stringPtr(pincode)
	customer.GSTIN = stringPtr(gstin)
	customer.Notes = stringPtr(notes)
	customer.CreatedAt = createdAt.Time
	customer.UpdatedAt = updatedAt.Time
	customer.TotalAmount, err = db.NumericToDecimal(totalAmount)
	if err != nil {
		return Customer{}, err
	}
	return customer, nil
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
