package validation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-admin/internal/status"
	"ticket-admin/internal/ticket"
	"ticket-admin/models"
)

// memSaleStore is a mutex-guarded in-memory vendas table whose MarkUsed has
// the same conditional-write semantics as the SQL store.
type memSaleStore struct {
	mu       sync.Mutex
	sales    map[string]*models.Sale // keyed by id_compra
	terminal map[string]bool
	findErr  error
	markErr  error
}

func newMemSaleStore(sales ...*models.Sale) *memSaleStore {
	s := &memSaleStore{
		sales:    map[string]*models.Sale{},
		terminal: map[string]bool{},
	}
	for _, t := range ticket.NewDefaultClassifier().TerminalSynonyms() {
		s.terminal[t] = true
	}
	for _, sale := range sales {
		s.sales[sale.PurchaseID] = sale
	}
	return s
}

func (s *memSaleStore) FindByPurchaseID(ctx context.Context, id string) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if sale, ok := s.sales[id]; ok {
		copied := *sale
		return &copied, nil
	}
	return nil, nil
}

func (s *memSaleStore) FindByTicketID(ctx context.Context, id string) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, sale := range s.sales {
		if sale.TicketID == id {
			copied := *sale
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memSaleStore) FindByAnyID(ctx context.Context, id string) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, sale := range s.sales {
		if sale.PurchaseID == id || sale.TicketID == id || sale.ID == id {
			copied := *sale
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memSaleStore) MarkUsed(ctx context.Context, purchaseID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	sale, ok := s.sales[purchaseID]
	if !ok {
		return false, nil
	}
	if s.terminal[normalized(sale.Status)] {
		return false, nil
	}
	sale.Status = ticket.StatusUsed
	usedAt := at
	sale.UsedAt = &usedAt
	return true, nil
}

func (s *memSaleStore) get(purchaseID string) *models.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sales[purchaseID]
}

func normalized(raw string) string {
	c := ticket.NewDefaultClassifier()
	if c.Classify(raw) == ticket.StateUsed {
		return "utilizado"
	}
	if c.Classify(raw) == ticket.StateCancelled {
		return "cancelado"
	}
	return raw
}

// memLedger is an append-only in-memory checkins table.
type memLedger struct {
	mu        sync.Mutex
	entries   []*models.CheckinEntry
	appendErr error
	findErr   error
}

func (l *memLedger) Append(ctx context.Context, entry *models.CheckinEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ID = fmt.Sprintf("chk-%d", len(l.entries)+1)
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memLedger) FindValidByPurchaseOrTicket(ctx context.Context, purchaseID, ticketID string) (*models.CheckinEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.findErr != nil {
		return nil, l.findErr
	}
	for _, entry := range l.entries {
		if entry.Status != StatusValid {
			continue
		}
		if (purchaseID != "" && entry.PurchaseID == purchaseID) ||
			(ticketID != "" && entry.TicketID == ticketID) {
			return entry, nil
		}
	}
	return nil, nil
}

func (l *memLedger) countByStatus(status string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, entry := range l.entries {
		if entry.Status == status {
			n++
		}
	}
	return n
}

type memPurchaseStore struct {
	mu           sync.Mutex
	byID         map[string]*models.Purchase
	byPurchaseID map[string]*models.Purchase
	err          error
}

func newMemPurchaseStore() *memPurchaseStore {
	return &memPurchaseStore{
		byID:         map[string]*models.Purchase{},
		byPurchaseID: map[string]*models.Purchase{},
	}
}

func (p *memPurchaseStore) add(purchase *models.Purchase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[purchase.ID] = purchase
	if purchase.PurchaseID != "" {
		p.byPurchaseID[purchase.PurchaseID] = purchase
	}
}

func (p *memPurchaseStore) TryFindByID(ctx context.Context, id string) (*models.Purchase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.byID[id], nil
}

func (p *memPurchaseStore) TryFindByPurchaseID(ctx context.Context, id string) (*models.Purchase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.byPurchaseID[id], nil
}

type memEventStore struct {
	events map[string]*models.Event
}

func (e *memEventStore) TryFind(ctx context.Context, id string) (*models.Event, error) {
	if e.events == nil {
		return nil, nil
	}
	return e.events[id], nil
}

type engineFixture struct {
	engine    *Engine
	sales     *memSaleStore
	purchases *memPurchaseStore
	ledger    *memLedger
	events    *memEventStore
}

func newEngineFixture(sales *memSaleStore) *engineFixture {
	purchases := newMemPurchaseStore()
	ledger := &memLedger{}
	events := &memEventStore{events: map[string]*models.Event{
		"evt-1": {ID: "evt-1", Title: "Festival de Verão", Price: 80},
	}}
	locator := ticket.NewLocator(sales, purchases)
	engine := NewEngine(locator, sales, purchases, ledger, events, ticket.NewDefaultClassifier(), nil)
	return &engineFixture{
		engine:    engine,
		sales:     sales,
		purchases: purchases,
		ledger:    ledger,
		events:    events,
	}
}

func encodedRequest(t *testing.T, purchaseID, eventID, ticketID, email string) Request {
	t.Helper()
	raw, err := ticket.EncodePayload(purchaseID, eventID, ticketID, email)
	require.NoError(t, err)
	return Request{QRPayload: raw, EventID: eventID, ValidatorID: "operator-1"}
}

func TestEngine_Validate_HappyPath(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		ID:         "v-1",
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		BuyerEmail: "ana@example.com",
		BuyerName:  "Ana Souza",
		Status:     "confirmado",
		Quantity:   2,
	}))

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", "ana@example.com"))

	assert.Equal(t, StatusValid, result.Status)
	assert.Equal(t, status.ReasonValid, result.Reason)
	assert.Equal(t, "compra-1", result.Data["purchase_id"])
	assert.Equal(t, "evt-1", result.Data["event_id"])
	assert.Equal(t, "Ana Souza", result.Data["buyer_name"])
	assert.Equal(t, 2, result.Data["quantity"])
	assert.Equal(t, "Festival de Verão", result.Data["event_name"])
	assert.NotEmpty(t, result.Data["used_at"])

	sale := fix.sales.get("compra-1")
	assert.Equal(t, ticket.StatusUsed, sale.Status)
	require.NotNil(t, sale.UsedAt)

	assert.Equal(t, 1, fix.ledger.countByStatus(StatusValid))
	assert.Equal(t, 0, fix.ledger.countByStatus(StatusInvalid))
}

func TestEngine_Validate_SecondScanRejected(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		BuyerName:  "Ana Souza",
		Status:     "confirmado",
	}))
	req := encodedRequest(t, "compra-1", "evt-1", "ing-1", "")

	first := fix.engine.Validate(context.Background(), req)
	require.Equal(t, StatusValid, first.Status)

	second := fix.engine.Validate(context.Background(), req)
	assert.Equal(t, StatusInvalid, second.Status)
	assert.Equal(t, status.ReasonAlreadyScanned, second.Reason)
	assert.NotEmpty(t, second.Data["first_scanned_at"])
	assert.Equal(t, "Ana Souza", second.Data["buyer_name"])

	assert.Equal(t, 1, fix.ledger.countByStatus(StatusValid))
	assert.Equal(t, 1, fix.ledger.countByStatus(StatusInvalid))
}

func TestEngine_Validate_ConcurrentScansRedeemExactlyOnce(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "confirmado",
	}))
	req := encodedRequest(t, "compra-1", "evt-1", "ing-1", "")

	const attempts = 16
	results := make([]Result, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fix.engine.Validate(context.Background(), req)
		}(i)
	}
	wg.Wait()

	validCount := 0
	for _, result := range results {
		switch result.Status {
		case StatusValid:
			validCount++
		case StatusInvalid:
			assert.Contains(t, []string{status.ReasonAlreadyScanned, status.ReasonConcurrentScan, status.ReasonAlreadyUsed}, result.Reason)
		default:
			t.Fatalf("unexpected status %q", result.Status)
		}
	}

	assert.Equal(t, 1, validCount, "exactly one concurrent scan may win")
	assert.Equal(t, 1, fix.ledger.countByStatus(StatusValid))
	assert.Equal(t, attempts-1, fix.ledger.countByStatus(StatusInvalid))
	assert.Equal(t, ticket.StatusUsed, fix.sales.get("compra-1").Status)
}

func TestEngine_Validate_AlreadyUsedStatus(t *testing.T) {
	usedAt := time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC)
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "utilizado",
		UsedAt:     &usedAt,
	}))

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", ""))

	assert.Equal(t, StatusInvalid, result.Status)
	assert.Equal(t, status.ReasonAlreadyUsed, result.Reason)
	assert.Equal(t, usedAt.Format(time.RFC3339), result.Data["used_at"])
	assert.Equal(t, 1, fix.ledger.countByStatus(StatusInvalid))
}

func TestEngine_Validate_CancelledTicket(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "cancelado",
	}))

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", ""))

	assert.Equal(t, StatusInvalid, result.Status)
	assert.Equal(t, status.ReasonCancelled, result.Reason)
	// The cancelled status must survive the rejected attempt untouched.
	assert.Equal(t, "cancelado", fix.sales.get("compra-1").Status)
}

func TestEngine_Validate_UnknownStatusProceeds(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "em análise",
	}))

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", ""))

	assert.Equal(t, StatusValid, result.Status)
	assert.Equal(t, ticket.StatusUsed, fix.sales.get("compra-1").Status)
}

func TestEngine_Validate_EventMismatch(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "confirmado",
	}))

	raw, err := ticket.EncodePayload("compra-1", "evt-1", "ing-1", "")
	require.NoError(t, err)
	result := fix.engine.Validate(context.Background(), Request{QRPayload: raw, EventID: "evt-2", ValidatorID: "operator-1"})

	assert.Equal(t, StatusInvalid, result.Status)
	assert.Equal(t, status.ReasonEventMismatch, result.Reason)
	assert.Equal(t, "confirmado", fix.sales.get("compra-1").Status)
	assert.Equal(t, 1, fix.ledger.countByStatus(StatusInvalid))
}

func TestEngine_Validate_UnknownTicket(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore())

	result := fix.engine.Validate(context.Background(), Request{QRPayload: "ghost-123", EventID: "evt-1", ValidatorID: "operator-1"})

	assert.Equal(t, StatusInvalid, result.Status)
	assert.Contains(t, result.Reason, "não encontrado")
	assert.Contains(t, result.Reason, "ghost-123")
	assert.Equal(t, 1, fix.ledger.countByStatus(StatusInvalid))
}

func TestEngine_Validate_SaleRowMissingForStructuredPayload(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore())

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-absent", "evt-1", "ing-absent", ""))

	assert.Equal(t, StatusInvalid, result.Status)
	assert.Equal(t, status.ReasonSaleNotFound, result.Reason)
}

func TestEngine_Validate_PaymentPending(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "confirmado",
	}))
	fix.purchases.add(&models.Purchase{ID: "ing-1", PurchaseID: "compra-1", EventID: "evt-1", Status: "pending"})

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", ""))

	assert.Equal(t, StatusInvalid, result.Status)
	assert.Equal(t, status.ReasonPaymentPending, result.Reason)
	assert.Equal(t, "confirmado", fix.sales.get("compra-1").Status)
}

func TestEngine_Validate_EmptyPaymentStatusIsNotRejection(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "confirmado",
	}))
	fix.purchases.add(&models.Purchase{ID: "ing-1", PurchaseID: "compra-1", EventID: "evt-1", Status: ""})

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", ""))

	assert.Equal(t, StatusValid, result.Status)
}

func TestEngine_Validate_PurchaseOnlyLegacyTicket(t *testing.T) {
	// No vendas row at all: the purchase record stands in and the ledger is
	// the only duplicate defense.
	fix := newEngineFixture(newMemSaleStore())
	fix.purchases.add(&models.Purchase{
		ID:         "p-1",
		PurchaseID: "compra-legacy",
		EventID:    "evt-1",
		Email:      "lu@example.com",
		BuyerName:  "Lucas Lima",
		Status:     "paid",
		Quantity:   1,
	})

	req := Request{QRPayload: "p-1", EventID: "evt-1", ValidatorID: "operator-1"}

	first := fix.engine.Validate(context.Background(), req)
	assert.Equal(t, StatusValid, first.Status)
	assert.Equal(t, "Lucas Lima", first.Data["buyer_name"])

	second := fix.engine.Validate(context.Background(), req)
	assert.Equal(t, StatusInvalid, second.Status)
	assert.Equal(t, status.ReasonAlreadyScanned, second.Reason)
}

func TestEngine_Validate_LedgerAppendFailureDoesNotMaskVerdict(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "confirmado",
	}))
	fix.ledger.appendErr = errors.New("checkins table locked")

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", ""))

	// The commit already happened; the append failure is swallowed.
	assert.Equal(t, StatusValid, result.Status)
	assert.Equal(t, ticket.StatusUsed, fix.sales.get("compra-1").Status)
}

func TestEngine_Validate_LedgerLookupFailureIsError(t *testing.T) {
	fix := newEngineFixture(newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "confirmado",
	}))
	fix.ledger.findErr = errors.New("db down")

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", ""))

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, status.ReasonInternalError, result.Reason)
	assert.Equal(t, "confirmado", fix.sales.get("compra-1").Status)
}

func TestEngine_Validate_MarkUsedFailureIsError(t *testing.T) {
	sales := newMemSaleStore(&models.Sale{
		PurchaseID: "compra-1",
		EventID:    "evt-1",
		TicketID:   "ing-1",
		Status:     "confirmado",
	})
	sales.markErr = errors.New("write failed")
	fix := newEngineFixture(sales)

	result := fix.engine.Validate(context.Background(), encodedRequest(t, "compra-1", "evt-1", "ing-1", ""))

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, 0, fix.ledger.countByStatus(StatusValid))
}
