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
	"taxengine/internal/validator"
)

// VATService computes consumption tax per transaction and per period.
type VATService interface {
	// ComputeTransactionTax returns the tax on tx. cls is the entity's current
	// classification: an ineligible entity computes no tax on any transaction.
	// cls is required for sales; a nil cls on a purchase yields the input tax
	// charged by the supplier.
	ComputeTransactionTax(tx *domain.Transaction, cls *domain.Classification) (decimal.Decimal, error)
	// PrepareTransaction derives the stored VAT fields of tx for a write path.
	// An underived sale exemption is filled in from eligibility; an explicit
	// charge on an ineligible entity is rejected.
	PrepareTransaction(ctx context.Context, entity *domain.Entity, tx *domain.Transaction) error
	// RecomputePeriodSummary rebuilds the VAT summary of period from the
	// current transaction set. It does not persist the result.
	RecomputePeriodSummary(ctx context.Context, entity *domain.Entity, period domain.TaxPeriod) (*domain.VATSummary, error)
}

type vatService struct {
	txRepo     port.TransactionRepository
	classifier Classifier
	table      *ratetable.Table
	rules      *validator.Engine
	logger     *zap.Logger
}

// NewVATService creates a new VATService.
func NewVATService(
	txRepo port.TransactionRepository,
	classifier Classifier,
	table *ratetable.Table,
	rules *validator.Engine,
	log *zap.Logger,
) VATService {
	if rules == nil {
		rules = validator.NewEngine(nil)
	}
	return &vatService{
		txRepo:     txRepo,
		classifier: classifier,
		table:      table,
		rules:      rules,
		logger:     logger.OrNop(log),
	}
}

func (s *vatService) ComputeTransactionTax(tx *domain.Transaction, cls *domain.Classification) (decimal.Decimal, error) {
	yt, err := s.table.ForYear(tx.TaxYear())
	if err != nil {
		return decimal.Zero, err
	}
	if tx.IsVATExempt() {
		return decimal.Zero, nil
	}

	if !tx.IsSale() && !tx.IsPurchase() {
		return decimal.Zero, fmt.Errorf("transaction %s kind %q: %w", tx.Ref(), tx.Kind, domain.ErrInvalidInput)
	}
	if cls != nil && !cls.VATEligible() {
		if tx.IsSale() && tx.AssertsVATCharge() {
			return decimal.Zero, domain.NewVATChargeConflict(cls.Turnover, cls.ConsumptionTaxThreshold)
		}
		return decimal.Zero, nil
	}
	if tx.IsSale() && cls == nil {
		return decimal.Zero, fmt.Errorf("classification is required for sale %s: %w", tx.Ref(), domain.ErrInvalidInput)
	}

	base := taxcalc.TaxableBase(tx.Amount, tx.TaxExclusive, yt.VATRate)
	if base.IsNegative() {
		return decimal.Zero, &domain.DerivedValueError{Field: "taxable_base", Value: base.String(), Err: domain.ErrNegativeAmount}
	}
	return taxcalc.VATAmount(base, yt.VATRate), nil
}

func (s *vatService) PrepareTransaction(ctx context.Context, entity *domain.Entity, tx *domain.Transaction) error {
	if tx.IsPurchase() {
		// Input tax is what the supplier charged; a logged amount is kept.
		tx.ResetDerivedVATExempt()
		tx.DeriveVATExempt(false)
		if tx.IsVATExempt() {
			tx.VATAmount = decimal.Zero
			return nil
		}
		if tx.VATAmount.IsZero() {
			amount, err := s.ComputeTransactionTax(tx, nil)
			if err != nil {
				return err
			}
			tx.VATAmount = amount
		}
		return nil
	}

	cls, err := s.classifier.Evaluate(ctx, entity, tx.TaxYear())
	if err != nil {
		return fmt.Errorf("classifying entity %s: %w", entity.ID, err)
	}
	// A derived exemption follows the current classification.
	tx.ResetDerivedVATExempt()
	amount, err := s.ComputeTransactionTax(tx, cls)
	if err != nil {
		return err
	}
	tx.DeriveVATExempt(!cls.VATEligible())
	tx.VATAmount = amount
	return nil
}

func (s *vatService) RecomputePeriodSummary(ctx context.Context, entity *domain.Entity, period domain.TaxPeriod) (*domain.VATSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	cls, err := s.classifier.Evaluate(ctx, entity, period.Year)
	if err != nil {
		return nil, fmt.Errorf("classifying entity %s: %w", entity.ID, err)
	}

	txs, err := s.txRepo.ListByEntity(ctx, entity.ID, domain.PeriodFilter(period, domain.TransactionStatusSettled))
	if err != nil {
		return nil, fmt.Errorf("listing settled transactions for %s: %w", period, err)
	}

	summary := &domain.VATSummary{
		EntityID:       entity.ID,
		PeriodYear:     period.Year,
		PeriodMonth:    period.Month,
		AnnualTurnover: cls.Turnover,
		Exempt:         cls.ConsumptionTax == domain.TierIneligible,
	}
	output, input := decimal.Zero, decimal.Zero
	for i := range txs {
		tx := &txs[i]
		report := s.rules.Check(ctx, tx, validator.ConcernVAT)
		if !report.Valid() {
			summary.SkippedCount++
			s.logger.Warn("vatService.RecomputePeriodSummary: skipping transaction",
				zap.Stringer("entity_id", entity.ID),
				zap.Stringer("transaction_id", tx.ID),
				zap.Stringer("period", period),
				zap.Error(report.Err()))
			continue
		}
		for _, w := range report.Failures(validator.SeverityWarning) {
			s.logger.Warn("vatService.RecomputePeriodSummary: "+w.Message,
				zap.Stringer("transaction_id", tx.ID), zap.String("rule", w.RuleKey))
		}

		switch {
		case tx.IsSale():
			summary.SalesCount++
			if !tx.IsVATExempt() {
				output = output.Add(tx.VATAmount)
			}
		case tx.IsPurchase():
			summary.PurchaseCount++
			if tx.Deductible && !tx.IsVATExempt() && tx.VATAmount.IsPositive() {
				input = input.Add(tx.VATAmount)
			}
		}
	}

	summary.OutputVAT = domain.RoundMoney(output)
	summary.InputVAT = domain.RoundMoney(input)
	summary.ClaimableInputVAT = summary.InputVAT

	// An entity below the threshold that charged nothing is behaving as
	// unregistered and cannot claim input credits.
	if cls.Turnover.LessThan(cls.ConsumptionTaxThreshold) && summary.OutputVAT.IsZero() {
		summary.ClaimableInputVAT = decimal.Zero
		summary.InputSuppressed = summary.InputVAT.IsPositive()
	}

	summary.NetVAT = domain.RoundMoney(summary.OutputVAT.Sub(summary.ClaimableInputVAT))
	switch summary.NetVAT.Sign() {
	case 1:
		summary.Status = domain.VATStatusPayable
	case -1:
		summary.Status = domain.VATStatusRefundable
	default:
		summary.Status = domain.VATStatusZero
	}

	s.logger.Debug("vatService.RecomputePeriodSummary: rebuilt",
		zap.Stringer("entity_id", entity.ID),
		zap.Stringer("period", period),
		zap.String("net_vat", summary.NetVAT.String()),
		zap.Int("skipped", summary.SkippedCount))
	return summary, nil
}
