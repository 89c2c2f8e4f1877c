package invoices

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/settings"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
)

type aggregate struct {
	count  int
	amount decimal.Decimal
}

type memoryInvoiceRepo struct {
	nextInvoiceID int64
	nextItemID    int64
	invoices      map[int64]*Invoice
	items         map[int64][]InvoiceItem
	aggregates    map[int64]aggregate
	prefix        string
	start         int64
	failCreates   int
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices:   make(map[int64]*Invoice),
		items:      make(map[int64][]InvoiceItem),
		aggregates: make(map[int64]aggregate),
		prefix:     "INV-",
		start:      500000,
	}
}

func (m *memoryInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryInvoiceRepo) Get(ctx context.Context, id int64) (*Invoice, error) {
	invoice, ok := m.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *invoice
	clone.Items = nil
	clone.ItemCount = len(m.items[id])
	return &clone, nil
}

func (m *memoryInvoiceRepo) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var out []Invoice
	for _, invoice := range m.invoices {
		if filter.Status != nil && string(invoice.Status) != *filter.Status {
			continue
		}
		if filter.CustomerID != nil && invoice.CustomerID != *filter.CustomerID {
			continue
		}
		clone := *invoice
		clone.ItemCount = len(m.items[invoice.ID])
		out = append(out, clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryInvoiceRepo) SumGrandTotal(ctx context.Context, filter ListFilter) (decimal.Decimal, error) {
	list, _, _ := m.List(ctx, filter)
	sum := decimal.Zero
	for _, invoice := range list {
		sum = sum.Add(invoice.GrandTotal)
	}
	return sum, nil
}

func (m *memoryInvoiceRepo) Create(ctx context.Context, invoice Invoice) (int64, error) {
	if m.failCreates > 0 {
		m.failCreates--
		return 0, ErrNumberTaken
	}
	for _, existing := range m.invoices {
		if existing.InvoiceNumber == invoice.InvoiceNumber {
			return 0, ErrNumberTaken
		}
	}
	m.nextInvoiceID++
	invoice.ID = m.nextInvoiceID
	invoice.CreatedAt = time.Now()
	invoice.UpdatedAt = invoice.CreatedAt
	m.invoices[invoice.ID] = &invoice
	return invoice.ID, nil
}

func (m *memoryInvoiceRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	invoice, ok := m.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "subtotal":
			invoice.Subtotal = value.(decimal.Decimal)
		case "tax_rate":
			invoice.TaxRate = value.(decimal.Decimal)
		case "tax_amount":
			invoice.TaxAmount = value.(decimal.Decimal)
		case "discount_amount":
			invoice.DiscountAmount = value.(decimal.Decimal)
		case "grand_total":
			invoice.GrandTotal = value.(decimal.Decimal)
		case "status":
			invoice.Status = Status(value.(string))
		case "invoice_date":
			invoice.InvoiceDate = value.(pgtype.Date).Time
		case "due_date":
			date := value.(pgtype.Date)
			if date.Valid {
				due := date.Time
				invoice.DueDate = &due
			} else {
				invoice.DueDate = nil
			}
		case "notes":
			invoice.Notes = stringPtr(value.(pgtype.Text))
		case "terms_and_conditions":
			invoice.TermsAndConditions = stringPtr(value.(pgtype.Text))
		}
	}
	invoice.UpdatedAt = time.Now()
	return nil
}

func (m *memoryInvoiceRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.invoices[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.invoices, id)
	delete(m.items, id)
	return nil
}

func (m *memoryInvoiceRepo) NextInvoiceNumber(ctx context.Context) (string, error) {
	last := int64(-1)
	for _, invoice := range m.invoices {
		if !strings.HasPrefix(invoice.InvoiceNumber, m.prefix) {
			continue
		}
		suffix, err := strconv.ParseInt(strings.TrimPrefix(invoice.InvoiceNumber, m.prefix), 10, 64)
		if err != nil {
			continue
		}
		if suffix > last {
			last = suffix
		}
	}
	next := m.start
	if last >= 0 {
		next = last + 1
	}
	return m.prefix + strconv.FormatInt(next, 10), nil
}

func (m *memoryInvoiceRepo) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	items := append([]InvoiceItem(nil), m.items[invoiceID]...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (m *memoryInvoiceRepo) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	for _, item := range items {
		m.nextItemID++
		item.ID = m.nextItemID
		item.InvoiceID = invoiceID
		m.items[invoiceID] = append(m.items[invoiceID], item)
	}
	return nil
}

func (m *memoryInvoiceRepo) ReplaceItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	m.items[invoiceID] = nil
	return m.InsertItems(ctx, invoiceID, items)
}

func (m *memoryInvoiceRepo) DeleteItem(ctx context.Context, itemID int64) error {
	for invoiceID, items := range m.items {
		for i, item := range items {
			if item.ID == itemID {
				m.items[invoiceID] = append(items[:i], items[i+1:]...)
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (m *memoryInvoiceRepo) RecalcCustomerAggregates(ctx context.Context, customerID int64) error {
	agg := aggregate{amount: decimal.Zero}
	for _, invoice := range m.invoices {
		if invoice.CustomerID != customerID {
			continue
		}
		agg.count++
		agg.amount = agg.amount.Add(invoice.GrandTotal)
	}
	m.aggregates[customerID] = agg
	return nil
}

type stubDirectory struct {
	byID map[int64]*customers.Customer
}

func (d *stubDirectory) Get(ctx context.Context, id int64) (*customers.Customer, error) {
	customer, ok := d.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return customer, nil
}

type stubSettingsSource struct{}

func (stubSettingsSource) Get(ctx context.Context) (*settings.Settings, error) {
	defaults := settings.Defaults()
	return &defaults, nil
}

type captureEmail struct {
	sent []int64
}

func (c *captureEmail) EnqueueInvoiceEmail(ctx context.Context, invoiceID int64) error {
	c.sent = append(c.sent, invoiceID)
	return nil
}

type invoiceFixture struct {
	repo      *memoryInvoiceRepo
	directory *stubDirectory
	emails    *captureEmail
	service   *Service
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()
	repo := newMemoryInvoiceRepo()
	directory := &stubDirectory{byID: map[int64]*customers.Customer{
		7: {ID: 7, CustomerName: "Acme Traders", PhoneNumber: "+919876543210", IsActive: true},
		8: {ID: 8, CustomerName: "Dormant Works", PhoneNumber: "+911234567890", IsActive: false},
	}}
	emails := &captureEmail{}
	service := NewService(repo, directory, stubSettingsSource{}, nil, emails)
	service.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return &invoiceFixture{repo: repo, directory: directory, emails: emails, service: service}
}

func itemInput(name, quantity, rate string) ItemInput {
	return ItemInput{
		ItemName: name,
		Quantity: decimal.RequireFromString(quantity),
		Rate:     decimal.RequireFromString(rate),
	}
}

func decp(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func requireValidationError(t *testing.T, err error, message string) {
	t.Helper()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, message, vErr.Message)
}

func requireRuleError(t *testing.T, err error, message string) {
	t.Helper()
	var rErr *RuleError
	require.ErrorAs(t, err, &rErr)
	require.Equal(t, message, rErr.Message)
}

func TestCreateInvoiceComputesTotalsAndNumber(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	detail, err := fix.service.Create(ctx, CreateInput{
		CustomerID:     7,
		TaxRate:        decp("10"),
		DiscountAmount: decp("50"),
		Items: []ItemInput{
			itemInput("Steel Rod", "5", "250.00"),
			itemInput("Binding Wire", "1", "149.99"),
		},
	}, 1)
	require.NoError(t, err)

	invoice := detail.Invoice
	require.Equal(t, "INV-500000", invoice.InvoiceNumber)
	require.Equal(t, StatusDraft, invoice.Status)
	require.Equal(t, "Acme Traders", invoice.CustomerName)
	require.Equal(t, "+919876543210", invoice.CustomerPhone)
	requireAmount(t, "1399.99", invoice.Subtotal)
	requireAmount(t, "140.00", invoice.TaxAmount)
	requireAmount(t, "1489.99", invoice.GrandTotal)
	require.Len(t, invoice.Items, 2)
	requireAmount(t, "1250.00", invoice.Items[0].Total)
	require.Equal(t, "piece", invoice.Items[0].Unit)
	require.NotNil(t, detail.Customer)

	agg := fix.repo.aggregates[7]
	require.Equal(t, 1, agg.count)
	requireAmount(t, "1489.99", agg.amount)
}

func TestCreateInvoiceSequencesNumbers(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	first, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)
	second, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)

	require.Equal(t, "INV-500000", first.Invoice.InvoiceNumber)
	require.Equal(t, "INV-500001", second.Invoice.InvoiceNumber)

	agg := fix.repo.aggregates[7]
	require.Equal(t, 2, agg.count)
	requireAmount(t, "200.00", agg.amount)
}

func TestCreateInvoiceRetriesOnNumberCollision(t *testing.T) {
	fix := newInvoiceFixture(t)
	fix.repo.failCreates = 1
	ctx := context.Background()

	detail, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)
	require.Equal(t, "INV-500000", detail.Invoice.InvoiceNumber)
	require.Len(t, fix.repo.invoices, 1)
}

func TestCreateInvoiceRejectsInactiveCustomer(t *testing.T) {
	fix := newInvoiceFixture(t)

	_, err := fix.service.Create(context.Background(), CreateInput{
		CustomerID: 8,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	requireValidationError(t, err, "Cannot create invoice for inactive customer")
}

func TestCreateInvoiceItemValidation(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	_, err := fix.service.Create(ctx, CreateInput{CustomerID: 7}, 1)
	requireValidationError(t, err, "Invoice must have at least one item")

	_, err = fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "0", "100.00")},
	}, 1)
	requireValidationError(t, err, "Quantity must be greater than zero")

	_, err = fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "-5.00")},
	}, 1)
	requireValidationError(t, err, "Rate cannot be negative")

	bad := itemInput("Steel Rod", "1", "100.00")
	bad.Unit = "bundle"
	_, err = fix.service.Create(ctx, CreateInput{CustomerID: 7, Items: []ItemInput{bad}}, 1)
	requireValidationError(t, err, "Invalid unit: bundle")
}

func TestCreateInvoiceRejectsTaxRateOutOfRange(t *testing.T) {
	fix := newInvoiceFixture(t)

	_, err := fix.service.Create(context.Background(), CreateInput{
		CustomerID: 7,
		TaxRate:    decp("150"),
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	requireValidationError(t, err, "Tax rate must be between 0 and 100")
}

func TestCreateInvoiceRejectsExcessDiscount(t *testing.T) {
	fix := newInvoiceFixture(t)

	_, err := fix.service.Create(context.Background(), CreateInput{
		CustomerID:     7,
		DiscountAmount: decp("200"),
		Items:          []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	requireValidationError(t, err, "Discount cannot exceed subtotal plus tax")
}

func TestUpdateReplacesItemsAndReprices(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "2", "100.00")},
	}, 1)
	require.NoError(t, err)

	updated, err := fix.service.Update(ctx, created.Invoice.ID, UpdateInput{
		TaxRate: decp("18"),
		Items:   []ItemInput{itemInput("Angle Frame", "3", "50.00")},
	}, 1)
	require.NoError(t, err)

	invoice := updated.Invoice
	require.Len(t, invoice.Items, 1)
	require.Equal(t, "Angle Frame", invoice.Items[0].ItemName)
	requireAmount(t, "150.00", invoice.Subtotal)
	requireAmount(t, "27.00", invoice.TaxAmount)
	requireAmount(t, "177.00", invoice.GrandTotal)

	agg := fix.repo.aggregates[7]
	requireAmount(t, "177.00", agg.amount)
}

func TestUpdateKeepsItemsWhenAbsent(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "2", "100.00")},
	}, 1)
	require.NoError(t, err)

	updated, err := fix.service.Update(ctx, created.Invoice.ID, UpdateInput{
		DiscountAmount: decp("25.00"),
	}, 1)
	require.NoError(t, err)

	invoice := updated.Invoice
	require.Len(t, invoice.Items, 1)
	requireAmount(t, "200.00", invoice.Subtotal)
	requireAmount(t, "175.00", invoice.GrandTotal)
}

func TestUpdateRejectsLockedInvoice(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)
	fix.repo.invoices[created.Invoice.ID].Status = StatusPaid

	_, err = fix.service.Update(ctx, created.Invoice.ID, UpdateInput{DiscountAmount: decp("5")}, 1)
	requireRuleError(t, err, "Cannot update a paid or cancelled invoice")
}

func TestUpdateStatusMarksSentAndEnqueuesEmail(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)
	id := created.Invoice.ID

	detail, err := fix.service.UpdateStatus(ctx, id, "sent", 1)
	require.NoError(t, err)
	require.Equal(t, StatusSent, detail.Invoice.Status)
	require.Equal(t, []int64{id}, fix.emails.sent)

	// Repeating the current status is a no-op and must not resend.
	detail, err = fix.service.UpdateStatus(ctx, id, "sent", 1)
	require.NoError(t, err)
	require.Equal(t, StatusSent, detail.Invoice.Status)
	require.Len(t, fix.emails.sent, 1)
}

func TestUpdateStatusRejectsDraftTarget(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)

	_, err = fix.service.UpdateStatus(ctx, created.Invoice.ID, "draft", 1)
	requireRuleError(t, err, "Invalid status. Must be: sent, paid, or cancelled")
}

func TestDeleteRequiresDraftStatus(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)
	id := created.Invoice.ID

	_, err = fix.service.UpdateStatus(ctx, id, "sent", 1)
	require.NoError(t, err)

	err = fix.service.Delete(ctx, id, 1)
	requireRuleError(t, err, "Only draft invoices can be deleted")
}

func TestDeleteDraftRecalculatesAggregates(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)
	id := created.Invoice.ID

	require.NoError(t, fix.service.Delete(ctx, id, 1))

	_, err = fix.service.Get(ctx, id)
	require.ErrorIs(t, err, shared.ErrNotFound)

	agg := fix.repo.aggregates[7]
	require.Equal(t, 0, agg.count)
	require.True(t, agg.amount.IsZero())
}

func TestDeleteItemRepricesInvoice(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		TaxRate:    decp("10"),
		Items: []ItemInput{
			itemInput("Steel Rod", "5", "250.00"),
			itemInput("Binding Wire", "1", "149.99"),
		},
	}, 1)
	require.NoError(t, err)
	id := created.Invoice.ID
	wireID := created.Invoice.Items[1].ID

	detail, err := fix.service.DeleteItem(ctx, id, wireID, 1)
	require.NoError(t, err)

	invoice := detail.Invoice
	require.Len(t, invoice.Items, 1)
	requireAmount(t, "1250.00", invoice.Subtotal)
	requireAmount(t, "125.00", invoice.TaxAmount)
	requireAmount(t, "1375.00", invoice.GrandTotal)

	agg := fix.repo.aggregates[7]
	requireAmount(t, "1375.00", agg.amount)

	_, err = fix.service.DeleteItem(ctx, id, invoice.Items[0].ID, 1)
	requireRuleError(t, err, "Cannot remove the last item from an invoice")
}

func TestDeleteItemMissing(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)

	_, err = fix.service.DeleteItem(ctx, created.Invoice.ID, 9999, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPrintIncludesCompanyBlock(t *testing.T) {
	fix := newInvoiceFixture(t)
	ctx := context.Background()

	created, err := fix.service.Create(ctx, CreateInput{
		CustomerID: 7,
		Items:      []ItemInput{itemInput("Steel Rod", "1", "100.00")},
	}, 1)
	require.NoError(t, err)

	data, err := fix.service.Print(ctx, created.Invoice.ID)
	require.NoError(t, err)
	require.Equal(t, "Standard Steels & Hardware", data.Company.CompanyName)
	require.Equal(t, int64(7), data.Customer.ID)
	require.Len(t, data.Invoice.Items, 1)
}

func TestInvoiceOrderClauseWhitelist(t *testing.T) {
	require.Equal(t, "grand_total DESC", OrderClause("-grand_total"))
	require.Equal(t, "invoice_date ASC", OrderClause("invoice_date"))
	require.Equal(t, "created_at DESC", OrderClause("-created_at"))
	require.Equal(t, "", OrderClause("customer_name"))
	require.Equal(t, "", OrderClause("1; DROP TABLE invoices"))
}
