package settings

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

type memorySettingsRepo struct {
	row *Settings
}

func (r *memorySettingsRepo) Get(ctx context.Context) (*Settings, error) {
	if r.row == nil {
		return nil, shared.ErrNotFound
	}
	copied := *r.row
	return &copied, nil
}

func (r *memorySettingsRepo) Ensure(ctx context.Context) (*Settings, error) {
	if r.row == nil {
		defaults := Defaults()
		r.row = &defaults
	}
	return r.Get(ctx)
}

func (r *memorySettingsRepo) Update(ctx context.Context, updates map[string]interface{}) error {
	if r.row == nil {
		return shared.ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "company_name":
			r.row.CompanyName = value.(string)
		case "tax_label":
			r.row.TaxLabel = value.(string)
		case "default_tax_rate":
			r.row.DefaultTaxRate = value.(decimal.Decimal)
		case "invoice_start_number":
			r.row.InvoiceStartNumber = value.(int64)
		case "payment_due_days":
			r.row.PaymentDueDays = value.(int)
		case "bank_name":
			if value == nil {
				r.row.BankName = nil
			} else {
				s := value.(string)
				r.row.BankName = &s
			}
		}
	}
	return nil
}

func TestGetSeedsDefaults(t *testing.T) {
	repo := &memorySettingsRepo{}
	svc := NewService(repo, nil)

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Standard Steels & Hardware", settings.CompanyName)
	require.Equal(t, "GST", settings.TaxLabel)
	require.Equal(t, "INV-", settings.InvoicePrefix)
	require.Equal(t, int64(500000), settings.InvoiceStartNumber)
	require.True(t, settings.DefaultTaxRate.Equal(decimal.RequireFromString("18.00")))
	require.Equal(t, 30, settings.PaymentDueDays)
}

func TestPublicDoesNotSeed(t *testing.T) {
	repo := &memorySettingsRepo{}
	svc := NewService(repo, nil)

	_, err := svc.Public(context.Background())
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Nil(t, repo.row)
}

func TestUpdateRejectsTaxRateOutOfRange(t *testing.T) {
	repo := &memorySettingsRepo{}
	svc := NewService(repo, nil)

	rate := decimal.RequireFromString("150")
	_, err := svc.Update(context.Background(), UpdateInput{DefaultTaxRate: &rate}, 1)
	require.ErrorIs(t, err, ErrTaxRateRange)

	negative := decimal.RequireFromString("-1")
	_, err = svc.Update(context.Background(), UpdateInput{DefaultTaxRate: &negative}, 1)
	require.ErrorIs(t, err, ErrTaxRateRange)
}

func TestUpdateRejectsNegativeStartNumber(t *testing.T) {
	repo := &memorySettingsRepo{}
	svc := NewService(repo, nil)

	start := int64(-5)
	_, err := svc.Update(context.Background(), UpdateInput{InvoiceStartNumber: &start}, 1)
	require.ErrorIs(t, err, ErrStartNumberNegative)
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	repo := &memorySettingsRepo{}
	svc := NewService(repo, nil)

	name := "Nimbus Traders"
	rate := decimal.RequireFromString("12.50")
	updated, err := svc.Update(context.Background(), UpdateInput{
		CompanyName:    &name,
		DefaultTaxRate: &rate,
	}, 1)
	require.NoError(t, err)
	require.Equal(t, "Nimbus Traders", updated.CompanyName)
	require.True(t, updated.DefaultTaxRate.Equal(rate))
	require.Equal(t, "GST", updated.TaxLabel)
}

func TestUpdateClearsOptionalField(t *testing.T) {
	repo := &memorySettingsRepo{}
	svc := NewService(repo, nil)

	bank := "State Bank"
	_, err := svc.Update(context.Background(), UpdateInput{BankName: &bank}, 1)
	require.NoError(t, err)
	require.NotNil(t, repo.row.BankName)

	empty := ""
	updated, err := svc.Update(context.Background(), UpdateInput{BankName: &empty}, 1)
	require.NoError(t, err)
	require.Nil(t, updated.BankName)
}
