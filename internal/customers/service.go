package customers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

var (
	ErrInvalidPhone = errors.New("customers: invalid phone number")
	ErrEmailInUse   = errors.New("customers: email already in use")
)

var (
	phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)
	phoneStrip   = regexp.MustCompile(`[^\d+]`)
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

// CreateInput holds the writable customer fields.
type CreateInput struct {
	CustomerName string
	PhoneNumber  string
	Email        *string
	Address      *string
	City         *string
	State        *string
	Pincode      *string
	GSTIN        *string
	Notes        *string
}

// UpdateInput carries partial updates. Nil fields are left untouched,
// pointers to empty strings clear the column.
type UpdateInput struct {
	CustomerName *string
	PhoneNumber  *string
	Email        *string
	Address      *string
	City         *string
	State        *string
	Pincode      *string
	GSTIN        *string
	Notes        *string
	IsActive     *bool
}

func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (*Customer, error) {
	phone, err := normalizePhone(input.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if input.Email != nil && *input.Email != "" {
		inUse, err := s.repo.EmailInUse(ctx, *input.Email, 0)
		if err != nil {
			return nil, fmt.Errorf("check customer email: %w", err)
		}
		if inUse {
			return nil, ErrEmailInUse
		}
	}

	customer := Customer{
		CustomerName: strings.TrimSpace(input.CustomerName),
		PhoneNumber:  phone,
		Email:        input.Email,
		Address:      input.Address,
		City:         input.City,
		State:        input.State,
		Pincode:      input.Pincode,
		GSTIN:        input.GSTIN,
		Notes:        input.Notes,
		IsActive:     true,
		TotalAmount:  decimal.Zero,
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		id, err = repo.Create(ctx, customer)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "customer.create",
			Entity:   "customer",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"customer_name": customer.CustomerName},
			At:       s.now(),
		})
	}

	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actorID int64) (*Customer, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	updates := make(map[string]interface{})
	if input.CustomerName != nil {
		updates["customer_name"] = strings.TrimSpace(*input.CustomerName)
	}
	if input.PhoneNumber != nil {
		phone, err := normalizePhone(*input.PhoneNumber)
		if err != nil {
			return nil, err
		}
		updates["phone_number"] = phone
	}
	if input.Email != nil {
		if *input.Email != "" {
			inUse, err := s.repo.EmailInUse(ctx, *input.Email, id)
			if err != nil {
				return nil, fmt.Errorf("check customer email: %w", err)
			}
			if inUse {
				return nil, ErrEmailInUse
			}
			updates["email"] = *input.Email
		} else {
			updates["email"] = nil
		}
	}
	assignText(updates, "address", input.Address)
	assignText(updates, "city", input.City)
	assignText(updates, "state", input.State)
	assignText(updates, "pincode", input.Pincode)
	assignText(updates, "gstin", input.GSTIN)
	assignText(updates, "notes", input.Notes)
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) == 0 {
		return existing, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, id, updates)
	})
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}

	if s.audit != nil {
		columns := make([]string, 0, len(updates))
		for column := range updates {
			columns = append(columns, column)
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "customer.update",
			Entity:   "customer",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"fields": columns},
			At:       s.now(),
		})
	}

	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	return s.repo.List(ctx, filter)
}

// Search returns up to ten active customers matching the query for
// type-ahead pickers. An empty query returns the latest customers.
func (s *Service) Search(ctx context.Context, query string) ([]Customer, error) {
	return s.repo.Search(ctx, strings.TrimSpace(query), 10)
}

// Delete removes a customer without invoices outright. Customers that
// have been invoiced are deactivated instead so historical invoices
// keep a valid reference. Returns true when the customer was
// deactivated rather than deleted.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) (bool, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get customer: %w", err)
	}

	if customer.TotalInvoices > 0 {
		err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			return repo.Update(ctx, id, map[string]interface{}{"is_active": false})
		})
		if err != nil {
			return false, fmt.Errorf("deactivate customer: %w", err)
		}
		if s.audit != nil {
			_ = s.audit.Record(ctx, shared.AuditLog{
				ActorID:  actorID,
				Action:   "customer.deactivate",
				Entity:   "customer",
				EntityID: fmt.Sprintf("%d", id),
				Meta:     map[string]any{"total_invoices": customer.TotalInvoices},
				At:       s.now(),
			})
		}
		return true, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return false, fmt.Errorf("delete customer: %w", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "customer.delete",
			Entity:   "customer",
			EntityID: fmt.Sprintf("%d", id),
			At:       s.now(),
		})
	}
	return false, nil
}

// Stats bundles a customer with its recent invoices and aggregate
// figures for the customer detail page.
type Stats struct {
	Customer       *Customer
	RecentInvoices []InvoiceSummary
	TotalInvoices  int
	TotalAmount    decimal.Decimal
	AverageInvoice decimal.Decimal
}

func (s *Service) Stats(ctx context.Context, id int64) (*Stats, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	recent, err := s.repo.RecentInvoices(ctx, id, 5)
	if err != nil {
		return nil, fmt.Errorf("recent invoices: %w", err)
	}

	average := decimal.Zero
	if customer.TotalInvoices > 0 {
		average = customer.TotalAmount.Div(decimal.NewFromInt(int64(customer.TotalInvoices))).Round(2)
	}

	return &Stats{
		Customer:       customer,
		RecentInvoices: recent,
		TotalInvoices:  customer.TotalInvoices,
		TotalAmount:    customer.TotalAmount,
		AverageInvoice: average,
	}, nil
}

// OrderClause maps an ordering query value such as "-total_amount" to
// a safe ORDER BY expression. Unknown values map to the empty string,
// which selects the default ordering.
func OrderClause(param string) string {
	if param == "" {
		return ""
	}
	descending := strings.HasPrefix(param, "-")
	column := strings.TrimPrefix(param, "-")
	switch column {
	case "customer_name", "created_at", "total_amount":
	default:
		return ""
	}
	if descending {
		return column + " DESC"
	}
	return column + " ASC"
}

func normalizePhone(raw string) (string, error) {
	clean := phoneStrip.ReplaceAllString(raw, "")
	if !phonePattern.MatchString(clean) {
		return "", ErrInvalidPhone
	}
	return clean, nil
}

func assignText(updates map[string]interface{}, column string, value *string) {
	if value == nil {
		return
	}
	if *value == "" {
		updates[column] = nil
		return
	}
	updates[column] = *value
}
