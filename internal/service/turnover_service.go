package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"taxengine/internal/domain"
	"taxengine/internal/logger"
	"taxengine/internal/port"
	"taxengine/internal/ratetable"
	"taxengine/internal/taxcalc"
)

// TurnoverCalculator derives an entity's revenue for a tax year.
type TurnoverCalculator interface {
	AnnualTurnover(ctx context.Context, entity *domain.Entity, taxYear int, basis domain.TurnoverBasis) (decimal.Decimal, error)
}

type turnoverCalculator struct {
	txRepo port.TransactionRepository
	table  *ratetable.Table
	logger *zap.Logger
}

// NewTurnoverCalculator creates a new TurnoverCalculator.
func NewTurnoverCalculator(txRepo port.TransactionRepository, table *ratetable.Table, log *zap.Logger) TurnoverCalculator {
	return &turnoverCalculator{txRepo: txRepo, table: table, logger: logger.OrNop(log)}
}

// statusesFor maps a basis to the statuses it recognises. Accrual counts
// issued sales whether or not they are paid; cash counts settled sales only.
func statusesFor(basis domain.TurnoverBasis) ([]domain.TransactionStatus, error) {
	switch basis {
	case domain.BasisAccrual:
		return []domain.TransactionStatus{domain.TransactionStatusSettled, domain.TransactionStatusPending}, nil
	case domain.BasisCash:
		return []domain.TransactionStatus{domain.TransactionStatusSettled}, nil
	}
	return nil, fmt.Errorf("turnover basis %q: %w", basis, domain.ErrInvalidInput)
}

func (c *turnoverCalculator) AnnualTurnover(ctx context.Context, entity *domain.Entity, taxYear int, basis domain.TurnoverBasis) (decimal.Decimal, error) {
	yt, err := c.table.ForYear(taxYear)
	if err != nil {
		return decimal.Zero, err
	}
	statuses, err := statusesFor(basis)
	if err != nil {
		return decimal.Zero, err
	}

	filter := domain.PeriodFilter(domain.AnnualPeriod(taxYear), statuses...)
	filter.Kind = domain.TransactionKindSale
	txs, err := c.txRepo.ListByEntity(ctx, entity.ID, filter)
	if err != nil {
		return decimal.Zero, fmt.Errorf("listing sales for turnover: %w", err)
	}

	total := decimal.Zero
	for i := range txs {
		tx := &txs[i]
		base := taxcalc.TaxableBase(tx.Amount, tx.TaxExclusive || tx.IsVATExempt(), yt.VATRate)
		if base.IsNegative() {
			c.logger.Warn("turnoverCalculator.AnnualTurnover: skipping negative sale",
				zap.Stringer("entity_id", entity.ID),
				zap.Stringer("transaction_id", tx.ID),
				zap.String("amount", tx.Amount.String()))
			continue
		}
		total = total.Add(base)
	}
	return domain.RoundMoney(total), nil
}
