package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxengine/internal/domain"
	"taxengine/internal/logger"
	"taxengine/internal/port"
	"taxengine/internal/ratetable"
)

// CoordinatorStores groups the stores the coordinator reads and owns.
// Queue and Audit are optional.
type CoordinatorStores struct {
	Entities     port.EntityRepository
	Transactions port.TransactionRepository
	VATSummaries port.VATSummaryRepository
	WHTSummaries port.WHTSummaryRepository
	Ledger       port.WHTLedgerRepository
	Queue        port.RecomputeQueueRepository
	Audit        port.TaxAuditRepository
}

// RecomputeCoordinator keeps summaries and the ledger in step with the
// transaction store. Every hook must be called after the mutation it
// reports has been committed. Summaries are always rebuilt in full, so any
// hook may be retried.
type RecomputeCoordinator interface {
	// PrepareTransaction derives the stored tax components of tx before it
	// is written.
	PrepareTransaction(ctx context.Context, tx *domain.Transaction) error

	OnTransactionCreated(ctx context.Context, tx *domain.Transaction) error
	OnTransactionSettled(ctx context.Context, tx *domain.Transaction) error
	OnTransactionUnsettled(ctx context.Context, tx *domain.Transaction) error
	// OnTransactionFieldsChanged rebuilds the periods of both versions when
	// the date moved across a period boundary.
	OnTransactionFieldsChanged(ctx context.Context, oldTx, newTx *domain.Transaction) error
	OnTransactionDeleted(ctx context.Context, tx *domain.Transaction) error

	// RecomputePeriod rebuilds one period immediately, regardless of mode.
	RecomputePeriod(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) error
	// GetPeriodSummary returns the stored VAT summary, computing it on first access.
	GetPeriodSummary(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.VATSummary, error)
	GetWHTSummary(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.WHTSummary, error)
	// RebuildEntity resyncs every ledger entry and rebuilds every period of
	// every supported year the entity has transactions in.
	RebuildEntity(ctx context.Context, entityID uuid.UUID) error
}

type recomputeCoordinator struct {
	stores CoordinatorStores
	vat    VATService
	wht    WHTService
	table  *ratetable.Table
	queued bool
	locks  *periodLocks
	audit  auditor
	logger *zap.Logger
}

// NewRecomputeCoordinator creates a new RecomputeCoordinator. When queued is
// set, hooks enqueue period rebuilds for the worker instead of running them.
// Ledger entries are always synced inline.
func NewRecomputeCoordinator(
	stores CoordinatorStores,
	vat VATService,
	wht WHTService,
	table *ratetable.Table,
	queued bool,
	log *zap.Logger,
) RecomputeCoordinator {
	log = logger.OrNop(log)
	if queued && stores.Queue == nil {
		log.Warn("recomputeCoordinator: queued mode without a queue store, recomputing inline")
		queued = false
	}
	return &recomputeCoordinator{
		stores: stores,
		vat:    vat,
		wht:    wht,
		table:  table,
		queued: queued,
		locks:  newPeriodLocks(),
		audit:  auditor{repo: stores.Audit, logger: log},
		logger: log,
	}
}

func (c *recomputeCoordinator) entity(ctx context.Context, entityID uuid.UUID) (*domain.Entity, error) {
	entity, err := c.stores.Entities.GetByID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading entity %s: %w", entityID, err)
	}
	return entity, nil
}

func (c *recomputeCoordinator) PrepareTransaction(ctx context.Context, tx *domain.Transaction) error {
	entity, err := c.entity(ctx, tx.EntityID)
	if err != nil {
		return err
	}
	if err := c.vat.PrepareTransaction(ctx, entity, tx); err != nil {
		return err
	}
	return c.wht.PrepareTransaction(ctx, entity, tx)
}

func (c *recomputeCoordinator) OnTransactionCreated(ctx context.Context, tx *domain.Transaction) error {
	return c.syncAndSchedule(ctx, tx, periodsOf(tx))
}

func (c *recomputeCoordinator) OnTransactionSettled(ctx context.Context, tx *domain.Transaction) error {
	return c.syncAndSchedule(ctx, tx, periodsOf(tx))
}

func (c *recomputeCoordinator) OnTransactionUnsettled(ctx context.Context, tx *domain.Transaction) error {
	return c.syncAndSchedule(ctx, tx, periodsOf(tx))
}

func (c *recomputeCoordinator) OnTransactionFieldsChanged(ctx context.Context, oldTx, newTx *domain.Transaction) error {
	if oldTx == nil || newTx == nil {
		return fmt.Errorf("both transaction versions are required: %w", domain.ErrInvalidInput)
	}
	if oldTx.ID != newTx.ID || oldTx.EntityID != newTx.EntityID {
		return fmt.Errorf("transaction versions %s and %s do not match: %w", oldTx.Ref(), newTx.Ref(), domain.ErrInvalidInput)
	}
	return c.syncAndSchedule(ctx, newTx, periodsOf(newTx, oldTx))
}

func (c *recomputeCoordinator) OnTransactionDeleted(ctx context.Context, tx *domain.Transaction) error {
	entity, err := c.entity(ctx, tx.EntityID)
	if err != nil {
		return err
	}
	if _, err := c.wht.RemoveLedger(ctx, entity.ID, tx.ID); err != nil {
		return err
	}
	return c.schedule(ctx, entity, periodsOf(tx))
}

// syncAndSchedule rebuilds the ledger entry of tx and then its periods. An
// identity error still lets the summaries rebuild and is returned afterwards
// so the caller learns why no ledger entry exists.
func (c *recomputeCoordinator) syncAndSchedule(ctx context.Context, tx *domain.Transaction, periods []domain.TaxPeriod) error {
	entity, err := c.entity(ctx, tx.EntityID)
	if err != nil {
		return err
	}
	var identityErr error
	if _, err := c.wht.SyncLedger(ctx, entity, tx); err != nil {
		if domain.KindOf(err) != domain.KindIdentity {
			return err
		}
		identityErr = err
	}
	if err := c.schedule(ctx, entity, periods); err != nil {
		return err
	}
	return identityErr
}

// periodsOf returns the monthly and annual periods of every version, without duplicates.
func periodsOf(txs ...*domain.Transaction) []domain.TaxPeriod {
	seen := make(map[domain.TaxPeriod]bool)
	var out []domain.TaxPeriod
	add := func(p domain.TaxPeriod) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, tx := range txs {
		if tx == nil || tx.Date.IsZero() {
			continue
		}
		p := tx.Period()
		add(p)
		add(p.Annual())
	}
	return out
}

func (c *recomputeCoordinator) schedule(ctx context.Context, entity *domain.Entity, periods []domain.TaxPeriod) error {
	for _, p := range periods {
		if c.queued {
			if err := c.stores.Queue.Enqueue(ctx, entity.ID, p); err != nil {
				return fmt.Errorf("enqueueing %s for entity %s: %w", p, entity.ID, err)
			}
			c.audit.record(ctx, entity.ID, nil, domain.AuditRecomputeEnqueued, map[string]interface{}{
				"period": p.String(),
			})
			continue
		}
		if err := c.recompute(ctx, entity, p); err != nil {
			return err
		}
	}
	return nil
}

// recompute rebuilds both summaries of one period. Nothing is written unless
// both rebuilds succeed.
func (c *recomputeCoordinator) recompute(ctx context.Context, entity *domain.Entity, period domain.TaxPeriod) error {
	unlock := c.locks.lock(entity.ID, period)
	defer unlock()

	vat, err := c.vat.RecomputePeriodSummary(ctx, entity, period)
	if err != nil {
		return fmt.Errorf("rebuilding VAT summary %s for entity %s: %w", period, entity.ID, err)
	}
	wht, err := c.wht.RecomputePeriodSummary(ctx, entity, period)
	if err != nil {
		return fmt.Errorf("rebuilding WHT summary %s for entity %s: %w", period, entity.ID, err)
	}
	if err := c.stores.VATSummaries.Upsert(ctx, vat); err != nil {
		return fmt.Errorf("storing VAT summary %s for entity %s: %w", period, entity.ID, err)
	}
	if err := c.stores.WHTSummaries.Upsert(ctx, wht); err != nil {
		return fmt.Errorf("storing WHT summary %s for entity %s: %w", period, entity.ID, err)
	}

	details := map[string]interface{}{
		"period":            period.String(),
		"net_vat":           vat.NetVAT,
		"status":            vat.Status,
		"credits_received":  wht.CreditsReceived,
		"withheld_remitted": wht.WithheldRemitted,
		"skipped":           vat.SkippedCount + wht.SkippedCount,
	}
	if dl, err := c.table.FilingDeadlines(period); err == nil {
		details["vat_due"] = dl.VATDue.Format(time.DateOnly)
		details["wht_due"] = dl.WHTDue.Format(time.DateOnly)
	}
	c.audit.record(ctx, entity.ID, nil, domain.AuditSummaryRecomputed, details)
	c.logger.Debug("recomputeCoordinator.recompute: summaries rebuilt",
		zap.Stringer("entity_id", entity.ID),
		zap.Stringer("period", period),
		zap.String("net_vat", vat.NetVAT.String()),
		zap.String("status", string(vat.Status)))
	return nil
}

func (c *recomputeCoordinator) RecomputePeriod(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) error {
	if err := period.Validate(); err != nil {
		return err
	}
	entity, err := c.entity(ctx, entityID)
	if err != nil {
		return err
	}
	return c.recompute(ctx, entity, period)
}

func (c *recomputeCoordinator) GetPeriodSummary(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.VATSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	summary, err := c.stores.VATSummaries.Get(ctx, entityID, period)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("loading VAT summary %s for entity %s: %w", period, entityID, err)
	}
	if err := c.RecomputePeriod(ctx, entityID, period); err != nil {
		return nil, err
	}
	return c.stores.VATSummaries.Get(ctx, entityID, period)
}

func (c *recomputeCoordinator) GetWHTSummary(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.WHTSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	summary, err := c.stores.WHTSummaries.Get(ctx, entityID, period)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("loading WHT summary %s for entity %s: %w", period, entityID, err)
	}
	if err := c.RecomputePeriod(ctx, entityID, period); err != nil {
		return nil, err
	}
	return c.stores.WHTSummaries.Get(ctx, entityID, period)
}

func (c *recomputeCoordinator) RebuildEntity(ctx context.Context, entityID uuid.UUID) error {
	entity, err := c.entity(ctx, entityID)
	if err != nil {
		return err
	}
	listed, err := c.stores.Transactions.ListYears(ctx, entityID)
	if err != nil {
		return fmt.Errorf("listing years for entity %s: %w", entityID, err)
	}
	var years []int
	for _, year := range listed {
		if _, err := c.table.ForYear(year); err != nil {
			c.logger.Warn("recomputeCoordinator.RebuildEntity: skipping unsupported year",
				zap.Stringer("entity_id", entityID), zap.Int("year", year), zap.Error(err))
			continue
		}
		years = append(years, year)
	}

	// Ledger first across all years, so a transaction that moved between
	// years is live when the older year is swept.
	live := make(map[uuid.UUID]bool)
	var identityErrs []error
	for _, year := range years {
		annual := domain.AnnualPeriod(year)
		txs, err := c.stores.Transactions.ListByEntity(ctx, entity.ID, domain.PeriodFilter(annual))
		if err != nil {
			return fmt.Errorf("listing transactions for %s: %w", annual, err)
		}
		for i := range txs {
			tx := &txs[i]
			live[tx.ID] = true
			if _, err := c.wht.SyncLedger(ctx, entity, tx); err != nil {
				if domain.KindOf(err) != domain.KindIdentity {
					return err
				}
				identityErrs = append(identityErrs, err)
			}
		}
	}

	for _, year := range years {
		entries, err := c.stores.Ledger.ListByEntity(ctx, entity.ID, year)
		if err != nil {
			return fmt.Errorf("listing ledger entries for %d: %w", year, err)
		}
		for i := range entries {
			if live[entries[i].TransactionID] {
				continue
			}
			if _, err := c.wht.RemoveLedger(ctx, entity.ID, entries[i].TransactionID); err != nil {
				return err
			}
		}

		for month := 1; month <= 12; month++ {
			if err := c.recompute(ctx, entity, domain.TaxPeriod{Year: year, Month: month}); err != nil {
				return err
			}
		}
		if err := c.recompute(ctx, entity, domain.AnnualPeriod(year)); err != nil {
			return err
		}
	}

	if len(identityErrs) > 0 {
		c.logger.Warn("recomputeCoordinator.RebuildEntity: transactions without ledger entries",
			zap.Stringer("entity_id", entityID), zap.Int("count", len(identityErrs)))
		return errors.Join(identityErrs...)
	}
	return nil
}
