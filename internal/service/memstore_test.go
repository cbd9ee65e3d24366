package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"taxengine/internal/domain"
	"taxengine/internal/ratetable"
	"taxengine/internal/service"
)

// memStore is an in-memory implementation of every port.
type memStore struct {
	mu       sync.Mutex
	entities map[uuid.UUID]domain.Entity
	txs      map[uuid.UUID]domain.Transaction
	vat      map[summaryKey]domain.VATSummary
	wht      map[summaryKey]domain.WHTSummary
	ledger   []domain.WHTCreditEntry
	queue    []domain.RecomputeRequest
	audit    []domain.TaxAuditEntry

	listErr error
}

type summaryKey struct {
	entityID uuid.UUID
	period   domain.TaxPeriod
}

func newMemStore() *memStore {
	return &memStore{
		entities: make(map[uuid.UUID]domain.Entity),
		txs:      make(map[uuid.UUID]domain.Transaction),
		vat:      make(map[summaryKey]domain.VATSummary),
		wht:      make(map[summaryKey]domain.WHTSummary),
	}
}

func (s *memStore) putEntity(e domain.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e
}

func (s *memStore) putTx(tx *domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = *tx
}

func (s *memStore) deleteTx(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.txs, id)
}

func (s *memStore) failLists(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func (s *memStore) ledgerFor(txID uuid.UUID) []domain.WHTCreditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WHTCreditEntry
	for _, e := range s.ledger {
		if e.TransactionID == txID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) ledgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

func (s *memStore) storedVAT(entityID uuid.UUID, p domain.TaxPeriod) (domain.VATSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vat[summaryKey{entityID, p}]
	return v, ok
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, a := range s.audit {
		out = append(out, a.Action)
	}
	return out
}

// EntityRepository

type memEntities struct{ *memStore }

func (r memEntities) GetByID(_ context.Context, entityID uuid.UUID) (*domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[entityID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (r memEntities) List(_ context.Context, offset, limit int) ([]domain.Entity, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Entity
	for _, e := range r.entities {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// TransactionRepository

type memTransactions struct{ *memStore }

func (r memTransactions) GetByID(_ context.Context, entityID, txID uuid.UUID) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[txID]
	if !ok || tx.EntityID != entityID {
		return nil, domain.ErrNotFound
	}
	return &tx, nil
}

func (r memTransactions) ListByEntity(_ context.Context, entityID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Transaction
	for _, tx := range r.txs {
		tx := tx
		if tx.EntityID == entityID && filter.Matches(&tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r memTransactions) ListYears(_ context.Context, entityID uuid.UUID) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int]bool{}
	var out []int
	for _, tx := range r.txs {
		if tx.EntityID != entityID || seen[tx.TaxYear()] {
			continue
		}
		seen[tx.TaxYear()] = true
		out = append(out, tx.TaxYear())
	}
	sort.Ints(out)
	return out, nil
}

// VATSummaryRepository

type memVATSummaries struct{ *memStore }

func (r memVATSummaries) Upsert(_ context.Context, summary *domain.VATSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vat[summaryKey{summary.EntityID, summary.Period()}] = *summary
	return nil
}

func (r memVATSummaries) Get(_ context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.VATSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vat[summaryKey{entityID, period}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (r memVATSummaries) ListByYear(_ context.Context, entityID uuid.UUID, year int) ([]domain.VATSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.VATSummary
	for k, v := range r.vat {
		if k.entityID == entityID && k.period.Year == year {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodMonth < out[j].PeriodMonth })
	return out, nil
}

// WHTSummaryRepository

type memWHTSummaries struct{ *memStore }

func (r memWHTSummaries) Upsert(_ context.Context, summary *domain.WHTSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wht[summaryKey{summary.EntityID, summary.Period()}] = *summary
	return nil
}

func (r memWHTSummaries) Get(_ context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.WHTSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.wht[summaryKey{entityID, period}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

// WHTLedgerRepository

type memLedger struct{ *memStore }

func (r memLedger) Create(_ context.Context, entry *domain.WHTCreditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger = append(r.ledger, *entry)
	return nil
}

func (r memLedger) DeleteByTransaction(_ context.Context, txID uuid.UUID) ([]domain.WHTCreditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept, deleted []domain.WHTCreditEntry
	for _, e := range r.ledger {
		if e.TransactionID == txID {
			deleted = append(deleted, e)
		} else {
			kept = append(kept, e)
		}
	}
	r.ledger = kept
	return deleted, nil
}

func (r memLedger) ListByPayee(_ context.Context, payeeKey string, taxYear int) ([]domain.WHTCreditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WHTCreditEntry
	for _, e := range r.ledger {
		if e.PayeeKey == payeeKey && e.TaxYear == taxYear {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memLedger) ListByEntity(_ context.Context, entityID uuid.UUID, taxYear int) ([]domain.WHTCreditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WHTCreditEntry
	for _, e := range r.ledger {
		if e.EntityID == entityID && e.TaxYear == taxYear {
			out = append(out, e)
		}
	}
	return out, nil
}

// RecomputeQueueRepository

type memQueue struct{ *memStore }

func (r memQueue) Enqueue(_ context.Context, entityID uuid.UUID, period domain.TaxPeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queue {
		if q.EntityID == entityID && q.Period() == period && q.Status == domain.RecomputeStatusPending {
			return nil
		}
	}
	r.queue = append(r.queue, domain.RecomputeRequest{
		ID:          uuid.New(),
		EntityID:    entityID,
		PeriodYear:  period.Year,
		PeriodMonth: period.Month,
		Status:      domain.RecomputeStatusPending,
	})
	return nil
}

func (r memQueue) ClaimPending(_ context.Context, limit int, staleBefore time.Time) ([]domain.RecomputeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RecomputeRequest
	for i := range r.queue {
		if len(out) == limit {
			break
		}
		q := &r.queue[i]
		stale := q.Status == domain.RecomputeStatusProcessing && q.UpdatedAt.Before(staleBefore)
		if q.Status == domain.RecomputeStatusPending || stale {
			q.Status = domain.RecomputeStatusProcessing
			q.Attempts++
			q.UpdatedAt = time.Now()
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r memQueue) MarkDone(_ context.Context, id uuid.UUID) error {
	return r.setStatus(id, domain.RecomputeStatusDone, "")
}

func (r memQueue) MarkFailed(_ context.Context, id uuid.UUID, lastErr string, _ int) error {
	return r.setStatus(id, domain.RecomputeStatusFailed, lastErr)
}

func (r memQueue) setStatus(id uuid.UUID, status domain.RecomputeStatus, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.queue {
		if r.queue[i].ID == id {
			r.queue[i].Status = status
			r.queue[i].LastError = lastErr
			r.queue[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) putRequest(req domain.RecomputeRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, req)
}

func (s *memStore) queued() []domain.RecomputeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RecomputeRequest(nil), s.queue...)
}

// TaxAuditRepository

type memAudit struct{ *memStore }

func (r memAudit) Create(_ context.Context, entry *domain.TaxAuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, *entry)
	return nil
}

// fixture wires every service over one memStore with the built-in tables.
type fixture struct {
	store       *memStore
	table       *ratetable.Table
	turnover    service.TurnoverCalculator
	classifier  service.Classifier
	vat         service.VATService
	wht         service.WHTService
	incomeTax   service.IncomeTaxService
	coordinator service.RecomputeCoordinator
}

func newFixture(t *testing.T) *fixture {
	return newFixtureMode(t, false)
}

func newFixtureMode(t *testing.T, queued bool) *fixture {
	t.Helper()
	store := newMemStore()
	table := ratetable.Default()
	log := zap.NewNop()

	txRepo := memTransactions{store}
	turnover := service.NewTurnoverCalculator(txRepo, table, log)
	classifier := service.NewClassifier(turnover, table)
	vat := service.NewVATService(txRepo, classifier, table, nil, log)
	wht := service.NewWHTService(txRepo, memLedger{store}, classifier, table, nil, memAudit{store}, log)
	incomeTax := service.NewIncomeTaxService(memEntities{store}, turnover, classifier, wht, table, log)
	coordinator := service.NewRecomputeCoordinator(service.CoordinatorStores{
		Entities:     memEntities{store},
		Transactions: txRepo,
		VATSummaries: memVATSummaries{store},
		WHTSummaries: memWHTSummaries{store},
		Ledger:       memLedger{store},
		Queue:        memQueue{store},
		Audit:        memAudit{store},
	}, vat, wht, table, queued, log)

	return &fixture{
		store:       store,
		table:       table,
		turnover:    turnover,
		classifier:  classifier,
		vat:         vat,
		wht:         wht,
		incomeTax:   incomeTax,
		coordinator: coordinator,
	}
}

func (f *fixture) entity(kind domain.EntityKind, taxID string) *domain.Entity {
	e := domain.Entity{
		ID:    uuid.New(),
		Kind:  kind,
		Name:  "Entity " + taxID,
		TaxID: taxID,
	}
	f.store.putEntity(e)
	return &e
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func sale(entityID uuid.UUID, date time.Time, amount string, status domain.TransactionStatus) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		EntityID:     entityID,
		Kind:         domain.TransactionKindSale,
		Status:       status,
		Date:         date,
		Amount:       dec(amount),
		TaxExclusive: true,
	}
}

func purchase(entityID uuid.UUID, date time.Time, amount string, status domain.TransactionStatus) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		EntityID:     entityID,
		Kind:         domain.TransactionKindPurchase,
		Status:       status,
		Date:         date,
		Amount:       dec(amount),
		TaxExclusive: true,
		Deductible:   true,
	}
}

// assertMoney compares a decimal to a two-place string.
func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}
