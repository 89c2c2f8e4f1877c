package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

var (
	ErrTaxRateRange        = errors.New("settings: tax rate out of range")
	ErrStartNumberNegative = errors.New("settings: invoice start number negative")
	ErrDueDaysNegative     = errors.New("settings: payment due days negative")
)

// AuditPort records mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Get returns the settings, seeding the default row on first access.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Ensure(ctx)
}

// Public returns the settings without seeding, so an unconfigured
// installation reports not found to anonymous callers.
func (s *Service) Public(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// UpdateInput carries partial settings updates. Nil fields are left
// untouched, pointers to empty strings clear optional columns.
type UpdateInput struct {
	CompanyName        *string
	CompanyAddress     *string
	PhoneNumber        *string
	Email              *string
	Website            *string
	GSTIN              *string
	DefaultTaxRate     *decimal.Decimal
	TaxLabel           *string
	InvoicePrefix      *string
	InvoiceStartNumber *int64
	InvoiceTerms       *string
	InvoiceFooter      *string
	PaymentDueDays     *int
	BankName           *string
	AccountNumber      *string
	IFSCCode           *string
}

func (s *Service) Update(ctx context.Context, input UpdateInput, actorID int64) (*Settings, error) {
	if _, err := s.repo.Ensure(ctx); err != nil {
		return nil, err
	}

	if input.DefaultTaxRate != nil {
		rate := *input.DefaultTaxRate
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return nil, ErrTaxRateRange
		}
	}
	if input.InvoiceStartNumber != nil && *input.InvoiceStartNumber < 0 {
		return nil, ErrStartNumberNegative
	}
	if input.PaymentDueDays != nil && *input.PaymentDueDays < 0 {
		return nil, ErrDueDaysNegative
	}

	updates := make(map[string]interface{})
	assign(updates, "company_name", input.CompanyName)
	assign(updates, "company_address", input.CompanyAddress)
	assign(updates, "phone_number", input.PhoneNumber)
	assign(updates, "email", input.Email)
	assignNullable(updates, "website", input.Website)
	assignNullable(updates, "gstin", input.GSTIN)
	if input.DefaultTaxRate != nil {
		updates["default_tax_rate"] = *input.DefaultTaxRate
	}
	assign(updates, "tax_label", input.TaxLabel)
	assign(updates, "invoice_prefix", input.InvoicePrefix)
	if input.InvoiceStartNumber != nil {
		updates["invoice_start_number"] = *input.InvoiceStartNumber
	}
	assign(updates, "invoice_terms", input.InvoiceTerms)
	assignNullable(updates, "invoice_footer", input.InvoiceFooter)
	if input.PaymentDueDays != nil {
		updates["payment_due_days"] = *input.PaymentDueDays
	}
	assignNullable(updates, "bank_name", input.BankName)
	assignNullable(updates, "account_number", input.AccountNumber)
	assignNullable(updates, "ifsc_code", input.IFSCCode)

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, updates); err != nil {
			return nil, fmt.Errorf("update settings: %w", err)
		}
		if s.audit != nil {
			columns := make([]string, 0, len(updates))
			for column := range updates {
				columns = append(columns, column)
			}
			_ = s.audit.Record(ctx, shared.AuditLog{
				ActorID:  actorID,
				Action:   "settings.update",
				Entity:   "company_settings",
				EntityID: "1",
				Meta:     map[string]any{"fields": columns},
				At:       s.now(),
			})
		}
	}

	return s.repo.Get(ctx)
}

func assign(updates map[string]interface{}, column string, value *string) {
	if value != nil {
		updates[column] = *value
	}
}

func assignNullable(updates map[string]interface{}, column string, value *string) {
	if value == nil {
		return
	}
	if *value == "" {
		updates[column] = nil
		return
	}
	updates[column] = *value
}
