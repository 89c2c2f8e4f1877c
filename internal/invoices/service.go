package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/settings"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

var (
	minQuantity = decimal.RequireFromString("0.01")
	maxTaxRate  = decimal.NewFromInt(100)
)

// ValidationError reports rejected input with a client-facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(message string) error { return &ValidationError{Message: message} }

// RuleError reports a lifecycle rule rejection, such as editing a paid
// invoice or deleting a non-draft one.
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func ruleViolation(message string) error { return &RuleError{Message: message} }

// CustomerDirectory resolves customers referenced by invoices.
type CustomerDirectory interface {
	Get(ctx context.Context, id int64) (*customers.Customer, error)
}

// SettingsSource supplies the company block for printable invoices.
type SettingsSource interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// AuditPort records mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// EmailEnqueuer schedules the invoice email job after an invoice is sent.
type EmailEnqueuer interface {
	EnqueueInvoiceEmail(ctx context.Context, invoiceID int64) error
}

type Service struct {
	repo      Repository
	customers CustomerDirectory
	settings  SettingsSource
	audit     AuditPort
	email     EmailEnqueuer
	now       func() time.Time
}

func NewService(repo Repository, directory CustomerDirectory, source SettingsSource, audit AuditPort, email EmailEnqueuer) *Service {
	return &Service{
		repo:      repo,
		customers: directory,
		settings:  source,
		audit:     audit,
		email:     email,
		now:       time.Now,
	}
}

// ItemInput holds the writable fields of one invoice line.
type ItemInput struct {
	ItemName    string
	Description *string
	Unit        string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	SortOrder   int
}

// CreateInput holds the writable invoice fields. Totals are always
// computed server-side; any client-sent amounts are ignored.
type CreateInput struct {
	CustomerID     int64
	InvoiceDate    *time.Time
	DueDate        *time.Time
	TaxRate        *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Notes          *string
	Terms          *string
	Items          []ItemInput
}

// UpdateInput carries partial updates. Nil fields are left untouched.
// A non-nil Items slice replaces the full item set.
type UpdateInput struct {
	InvoiceDate    *time.Time
	DueDate        *time.Time
	ClearDueDate   bool
	Status         *string
	TaxRate        *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Notes          *string
	Terms          *string
	Items          []ItemInput
}

// Detail pairs an invoice with the customer it bills.
type Detail struct {
	Invoice  *Invoice
	Customer *customers.Customer
}

// PrintData carries everything a rendered invoice needs.
type PrintData struct {
	Invoice  *Invoice
	Customer *customers.Customer
	Company  *settings.Settings
}

func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (*Detail, error) {
	items, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	taxRate := decimal.Zero
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}
	discount := decimal.Zero
	if input.DiscountAmount != nil {
		discount = *input.DiscountAmount
	}
	totals, err := checkedTotals(items, taxRate, discount)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.Get(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, invalid("Customer not found")
		}
		return nil, fmt.Errorf("resolve customer: %w", err)
	}
	if !customer.IsActive {
		return nil, invalid("Cannot create invoice for inactive customer")
	}

	invoiceDate := s.now()
	if input.InvoiceDate != nil {
		invoiceDate = *input.InvoiceDate
	}

	invoice := Invoice{
		CustomerID:         customer.ID,
		CustomerName:       customer.CustomerName,
		CustomerPhone:      customer.PhoneNumber,
		InvoiceDate:        invoiceDate,
		DueDate:            input.DueDate,
		Status:             StatusDraft,
		Subtotal:           totals.Subtotal,
		TaxRate:            taxRate,
		TaxAmount:          totals.TaxAmount,
		DiscountAmount:     discount,
		GrandTotal:         totals.GrandTotal,
		Notes:              input.Notes,
		TermsAndConditions: input.Terms,
		CreatedBy:          &actorID,
	}

	var id int64
	create := func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			number, err := repo.NextInvoiceNumber(ctx)
			if err != nil {
				return err
			}
			invoice.InvoiceNumber = number

			id, err = repo.Create(ctx, invoice)
			if err != nil {
				return err
			}
			if err := repo.InsertItems(ctx, id, items); err != nil {
				return err
			}
			return repo.RecalcCustomerAggregates(ctx, invoice.CustomerID)
		})
	}

	err = create()
	if errors.Is(err, ErrNumberTaken) {
		err = create()
	}
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "invoice.create",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"invoice_number": invoice.InvoiceNumber,
				"customer_id":    invoice.CustomerID,
				"grand_total":    invoice.GrandTotal.String(),
			},
			At: s.now(),
		})
	}

	return s.Detail(ctx, id)
}

// Get loads an invoice with its items in display order.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	invoice, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	invoice.Items = items
	invoice.ItemCount = len(items)
	return invoice, nil
}

// Detail loads an invoice together with the customer it bills.
func (s *Service) Detail(ctx context.Context, id int64) (*Detail, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, invoice.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer: %w", err)
	}
	return &Detail{Invoice: invoice, Customer: customer}, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	return s.repo.List(ctx, filter)
}

// Summarize totals the grand amounts of every invoice matching the filter.
func (s *Service) Summarize(ctx context.Context, filter ListFilter) (decimal.Decimal, error) {
	return s.repo.SumGrandTotal(ctx, filter)
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actorID int64) (*Detail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status.Locked() {
		return nil, ruleViolation("Cannot update a paid or cancelled invoice")
	}

	items := existing.Items
	itemsReplaced := input.Items != nil
	if itemsReplaced {
		items, err = buildItems(input.Items)
		if err != nil {
			return nil, err
		}
	}

	taxRate := existing.TaxRate
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}
	discount := existing.DiscountAmount
	if input.DiscountAmount != nil {
		discount = *input.DiscountAmount
	}
	totals, err := checkedTotals(items, taxRate, discount)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"subtotal":        totals.Subtotal,
		"tax_rate":        taxRate,
		"tax_amount":      totals.TaxAmount,
		"discount_amount": discount,
		"grand_total":     totals.GrandTotal,
	}
	if input.InvoiceDate != nil {
		updates["invoice_date"] = datePtr(input.InvoiceDate)
	}
	if input.ClearDueDate {
		updates["due_date"] = datePtr(nil)
	} else if input.DueDate != nil {
		updates["due_date"] = datePtr(input.DueDate)
	}
	if input.Status != nil {
		status := Status(*input.Status)
		if !status.Valid() {
			return nil, invalid("Invalid status")
		}
		updates["status"] = string(status)
	}
	if input.Notes != nil {
		updates["notes"] = textPtr(input.Notes)
	}
	if input.Terms != nil {
		updates["terms_and_conditions"] = textPtr(input.Terms)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if itemsReplaced {
			if err := repo.ReplaceItems(ctx, id, items); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return err
		}
		return repo.RecalcCustomerAggregates(ctx, existing.CustomerID)
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "invoice.update",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"invoice_number": existing.InvoiceNumber,
				"items_replaced": itemsReplaced,
			},
			At: s.now(),
		})
	}

	return s.Detail(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != StatusDraft {
		return ruleViolation("Only draft invoices can be deleted")
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		return repo.RecalcCustomerAggregates(ctx, existing.CustomerID)
	})
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "invoice.delete",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"invoice_number": existing.InvoiceNumber},
			At:       s.now(),
		})
	}
	return nil
}

// UpdateStatus moves an invoice to sent, paid, or cancelled. Draft is not
// a valid target; repeating the current status is accepted and does
// nothing. Marking an invoice sent schedules the invoice email.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string, actorID int64) (*Detail, error) {
	target := Status(status)
	switch target {
	case StatusSent, StatusPaid, StatusCancelled:
	default:
		return nil, ruleViolation("Invalid status. Must be: sent, paid, or cancelled")
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == target {
		return s.Detail(ctx, id)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, id, map[string]interface{}{"status": string(target)}); err != nil {
			return err
		}
		return repo.RecalcCustomerAggregates(ctx, existing.CustomerID)
	})
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "invoice.status",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"invoice_number": existing.InvoiceNumber,
				"from":           string(existing.Status),
				"to":             string(target),
			},
			At: s.now(),
		})
	}

	if target == StatusSent && s.email != nil {
		_ = s.email.EnqueueInvoiceEmail(ctx, id)
	}

	return s.Detail(ctx, id)
}

// DeleteItem removes a single line from an invoice and reprices it. The
// last remaining item cannot be removed.
func (s *Service) DeleteItem(ctx context.Context, invoiceID, itemID int64, actorID int64) (*Detail, error) {
	existing, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if existing.Status.Locked() {
		return nil, ruleViolation("Cannot update a paid or cancelled invoice")
	}

	remaining := make([]InvoiceItem, 0, len(existing.Items))
	found := false
	for _, item := range existing.Items {
		if item.ID == itemID {
			found = true
			continue
		}
		remaining = append(remaining, item)
	}
	if !found {
		return nil, shared.ErrNotFound
	}
	if len(remaining) == 0 {
		return nil, ruleViolation("Cannot remove the last item from an invoice")
	}

	totals := ComputeTotals(remaining, existing.TaxRate, existing.DiscountAmount)
	updates := map[string]interface{}{
		"subtotal":    totals.Subtotal,
		"tax_amount":  totals.TaxAmount,
		"grand_total": totals.GrandTotal,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		if err := repo.Update(ctx, invoiceID, updates); err != nil {
			return err
		}
		return repo.RecalcCustomerAggregates(ctx, existing.CustomerID)
	})
	if err != nil {
		return nil, fmt.Errorf("delete item: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "invoice.item.delete",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", invoiceID),
			Meta:     map[string]any{"item_id": itemID},
			At:       s.now(),
		})
	}

	return s.Detail(ctx, invoiceID)
}

// Print collects the invoice, customer, and company settings for the
// printable view and the PDF renderer.
func (s *Service) Print(ctx context.Context, id int64) (*PrintData, error) {
	detail, err := s.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	company, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &PrintData{Invoice: detail.Invoice, Customer: detail.Customer, Company: company}, nil
}

func buildItems(inputs []ItemInput) ([]InvoiceItem, error) {
	if len(inputs) == 0 {
		return nil, invalid("Invoice must have at least one item")
	}
	out := make([]InvoiceItem, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.ItemName)
		if name == "" {
			return nil, invalid("Item name is required")
		}
		unit := in.Unit
		if unit == "" {
			unit = DefaultUnit
		}
		if !ValidUnit(unit) {
			return nil, invalid("Invalid unit: " + unit)
		}
		if in.Quantity.LessThan(minQuantity) {
			return nil, invalid("Quantity must be greater than zero")
		}
		if in.Rate.IsNegative() {
			return nil, invalid("Rate cannot be negative")
		}
		out = append(out, InvoiceItem{
			ItemName:    name,
			Description: in.Description,
			Unit:        unit,
			Quantity:    in.Quantity,
			Rate:        in.Rate,
			Total:       LineTotal(in.Quantity, in.Rate),
			SortOrder:   in.SortOrder,
		})
	}
	return out, nil
}

func checkedTotals(items []InvoiceItem, taxRate, discount decimal.Decimal) (Totals, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(maxTaxRate) {
		return Totals{}, invalid("Tax rate must be between 0 and 100")
	}
	if discount.IsNegative() {
		return Totals{}, invalid("Discount cannot be negative")
	}
	totals := ComputeTotals(items, taxRate, discount)
	if discount.GreaterThan(totals.Subtotal.Add(totals.TaxAmount)) {
		return Totals{}, invalid("Discount cannot exceed subtotal plus tax")
	}
	return totals, nil
}

// OrderClause maps a client ordering parameter onto a SQL clause. Unknown
// values fall back to the default ordering.
func OrderClause(param string) string {
	desc := strings.HasPrefix(param, "-")
	column := strings.TrimPrefix(param, "-")
	switch column {
	case "invoice_date", "created_at", "grand_total":
	default:
		return ""
	}
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}
