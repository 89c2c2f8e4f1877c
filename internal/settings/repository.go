package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/platform/db"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

// Repository persists the company settings singleton.
type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Ensure(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, updates map[string]interface{}) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const settingsColumns = `id, company_name, company_address, phone_number, email, website, gstin, default_tax_rate, tax_label, invoice_prefix, invoice_start_number, invoice_terms, invoice_footer, payment_due_days, bank_name, account_number, ifsc_code, created_at, updated_at`

func (r *repository) Get(ctx context.Context) (*Settings, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM company_settings WHERE id = 1`)
	settings, err := scanSettings(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return settings, nil
}

// Ensure returns the settings row, inserting the defaults when the
// table is still empty.
func (r *repository) Ensure(ctx context.Context) (*Settings, error) {
	defaults := Defaults()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO company_settings (id, company_name, company_address, phone_number, email, default_tax_rate, tax_label, invoice_prefix, invoice_start_number, invoice_terms, payment_due_days, created_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`,
		defaults.CompanyName, defaults.CompanyAddress, defaults.PhoneNumber, defaults.Email,
		db.DecimalToNumeric(defaults.DefaultTaxRate), defaults.TaxLabel, defaults.InvoicePrefix,
		defaults.InvoiceStartNumber, defaults.InvoiceTerms, defaults.PaymentDueDays,
	)
	if err != nil {
		return nil, fmt.Errorf("settings: seed defaults: %w", err)
	}
	return r.Get(ctx)
}

func (r *repository) Update(ctx context.Context, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	set := ""
	args := make([]interface{}, 0, len(updates))
	argNum := 1
	for column, value := range updates {
		if set != "" {
			set += ", "
		}
		set += column + " = $" + strconv.Itoa(argNum)
		if d, ok := value.(decimal.Decimal); ok {
			value = db.DecimalToNumeric(d)
		}
		args = append(args, value)
		argNum++
	}
	set += ", updated_at = NOW()"

	tag, err := r.pool.Exec(ctx, `UPDATE company_settings SET `+set+` WHERE id = 1`, args...)
	if err != nil {
		return fmt.Errorf("settings: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (*Settings, error) {
	var (
		settings      Settings
		website       pgtype.Text
		gstin         pgtype.Text
		taxRate       pgtype.Numeric
		invoiceFooter pgtype.Text
		bankName      pgtype.Text
		accountNumber pgtype.Text
		ifscCode      pgtype.Text
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
	)
	err := row.Scan(&settings.ID, &settings.CompanyName, &settings.CompanyAddress, &settings.PhoneNumber,
		&settings.Email, &website, &gstin, &taxRate, &settings.TaxLabel, &settings.InvoicePrefix,
		&settings.InvoiceStartNumber, &settings.InvoiceTerms, &invoiceFooter, &settings.PaymentDueDays,
		&bankName, &accountNumber, &ifscCode, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	settings.Website = stringPtr(website)
	settings.GSTIN = stringPtr(gstin)
	settings.InvoiceFooter = stringPtr(invoiceFooter)
	settings.BankName = stringPtr(bankName)
	settings.AccountNumber = stringPtr(accountNumber)
	settings.IFSCCode = stringPtr(ifscCode)
	settings.CreatedAt = createdAt.Time
	settings.UpdatedAt = updatedAt.Time
	settings.DefaultTaxRate, err = db.NumericToDecimal(taxRate)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func stringPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	val := t.String
	return &val
}
