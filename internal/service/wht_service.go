package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"taxengine/internal/domain"
	"taxengine/internal/logger"
	"taxengine/internal/port"
	"taxengine/internal/ratetable"
	"taxengine/internal/taxcalc"
	"taxengine/internal/validator"
)

// WithholdingInput describes one withholding computation.
type WithholdingInput struct {
	Base        decimal.Decimal
	PaymentType domain.PaymentType
	TaxYear     int
	// Beneficiary is the kind of party the tax is withheld from.
	Beneficiary domain.EntityKind
	// BeneficiaryExempt is the beneficiary's withholding exemption.
	BeneficiaryExempt bool
	// Explicit marks a payment type chosen by the user. Exemptions are not
	// applied to explicit choices.
	Explicit bool
}

// WHTService computes withholding and maintains the payee-keyed credit ledger.
type WHTService interface {
	WithholdingRate(pt domain.PaymentType, beneficiary domain.EntityKind, taxYear int) (decimal.Decimal, error)
	ComputeWithholding(in WithholdingInput) (decimal.Decimal, error)
	// PrepareTransaction derives WHTAmount for a write path.
	PrepareTransaction(ctx context.Context, entity *domain.Entity, tx *domain.Transaction) error
	// SyncLedger deletes every ledger entry of tx and creates a fresh one when
	// tx is settled and carries a positive withholding.
	SyncLedger(ctx context.Context, entity *domain.Entity, tx *domain.Transaction) (*domain.WHTCreditEntry, error)
	// RemoveLedger deletes every ledger entry of a transaction.
	RemoveLedger(ctx context.Context, entityID, txID uuid.UUID) ([]domain.WHTCreditEntry, error)
	// TotalCredits counts each withholding event under payeeKey once, even when
	// both the payer and the payee recorded it.
	TotalCredits(ctx context.Context, payeeKey string, taxYear int) (decimal.Decimal, error)
	ApplyCredit(liability, credits decimal.Decimal) domain.CreditApplication
	// RecomputePeriodSummary rebuilds the withholding summary of period from
	// the current transaction set. It does not persist the result.
	RecomputePeriodSummary(ctx context.Context, entity *domain.Entity, period domain.TaxPeriod) (*domain.WHTSummary, error)
}

type whtService struct {
	txRepo     port.TransactionRepository
	ledgerRepo port.WHTLedgerRepository
	classifier Classifier
	table      *ratetable.Table
	rules      *validator.Engine
	audit      auditor
	logger     *zap.Logger
}

// NewWHTService creates a new WHTService.
func NewWHTService(
	txRepo port.TransactionRepository,
	ledgerRepo port.WHTLedgerRepository,
	classifier Classifier,
	table *ratetable.Table,
	rules *validator.Engine,
	auditRepo port.TaxAuditRepository,
	log *zap.Logger,
) WHTService {
	log = logger.OrNop(log)
	if rules == nil {
		rules = validator.NewEngine(nil)
	}
	return &whtService{
		txRepo:     txRepo,
		ledgerRepo: ledgerRepo,
		classifier: classifier,
		table:      table,
		rules:      rules,
		audit:      auditor{repo: auditRepo, logger: log},
		logger:     log,
	}
}

func (s *whtService) WithholdingRate(pt domain.PaymentType, beneficiary domain.EntityKind, taxYear int) (decimal.Decimal, error) {
	yt, err := s.table.ForYear(taxYear)
	if err != nil {
		return decimal.Zero, err
	}
	return yt.WithholdingRate(pt, beneficiary)
}

func (s *whtService) ComputeWithholding(in WithholdingInput) (decimal.Decimal, error) {
	if in.PaymentType == domain.PaymentTypeNone {
		if in.Explicit {
			return decimal.Zero, fmt.Errorf("no payment type selected: %w", domain.ErrInvalidWithholding)
		}
		return decimal.Zero, nil
	}
	if in.Base.IsNegative() {
		return decimal.Zero, &domain.DerivedValueError{Field: "withholding_base", Value: in.Base.String(), Err: domain.ErrNegativeAmount}
	}
	yt, err := s.table.ForYear(in.TaxYear)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := yt.WithholdingRate(in.PaymentType, in.Beneficiary)
	if err != nil {
		return decimal.Zero, err
	}

	if !in.Explicit {
		if in.BeneficiaryExempt {
			return decimal.Zero, nil
		}
		ceiling := yt.Withholding.ServicePaymentCeiling
		if yt.IsServiceType(in.PaymentType) && ceiling.IsPositive() && in.Base.LessThanOrEqual(ceiling) {
			return decimal.Zero, nil
		}
	}

	amount := taxcalc.WithholdingAmount(in.Base, rate)
	if in.Explicit && !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s on base %s yields no withholding: %w", in.PaymentType, in.Base, domain.ErrInvalidWithholding)
	}
	return amount, nil
}

// beneficiary identifies who a withholding on tx is credited to. On a sale the
// customer withholds on the entity; on a purchase the entity withholds on the payee.
type beneficiary struct {
	kind      domain.EntityKind
	exempt    bool
	name      string
	taxID     string
	direction domain.LedgerDirection
}

// The entity's own exemption is only classified when withExemption is set.
func (s *whtService) beneficiaryOf(ctx context.Context, entity *domain.Entity, tx *domain.Transaction, withExemption bool) (*beneficiary, error) {
	if tx.IsSale() {
		b := &beneficiary{
			kind:      entity.Kind,
			name:      entity.Name,
			taxID:     entity.TaxID,
			direction: domain.LedgerDirectionCredit,
		}
		if withExemption {
			cls, err := s.classifier.Evaluate(ctx, entity, tx.TaxYear())
			if err != nil {
				return nil, fmt.Errorf("classifying entity %s: %w", entity.ID, err)
			}
			b.exempt = cls.WithholdingExempt()
		}
		return b, nil
	}
	if tx.Payee == nil || !tx.Payee.Tier.Valid() {
		return nil, &domain.IdentityError{TransactionRef: tx.Ref(), Reason: "payee tier is required to withhold"}
	}
	return &beneficiary{
		kind:      tx.Payee.Tier.Kind(),
		exempt:    tx.Payee.Tier.IsSmall(),
		name:      tx.Payee.Name,
		taxID:     tx.Payee.TaxID,
		direction: domain.LedgerDirectionRemittance,
	}, nil
}

func (s *whtService) baseOf(tx *domain.Transaction) (decimal.Decimal, error) {
	yt, err := s.table.ForYear(tx.TaxYear())
	if err != nil {
		return decimal.Zero, err
	}
	return taxcalc.TaxableBase(tx.Amount, tx.TaxExclusive || tx.IsVATExempt(), yt.VATRate), nil
}

func (s *whtService) PrepareTransaction(ctx context.Context, entity *domain.Entity, tx *domain.Transaction) error {
	if !tx.HasWithholding() {
		if tx.WHTExplicit {
			return fmt.Errorf("transaction %s: %w", tx.Ref(), domain.ErrInvalidWithholding)
		}
		tx.WHTAmount = decimal.Zero
		return nil
	}
	base, err := s.baseOf(tx)
	if err != nil {
		return err
	}
	b, err := s.beneficiaryOf(ctx, entity, tx, true)
	if err != nil {
		tx.WHTAmount = decimal.Zero
		return err
	}
	amount, err := s.ComputeWithholding(WithholdingInput{
		Base:              base,
		PaymentType:       tx.WHTPaymentType,
		TaxYear:           tx.TaxYear(),
		Beneficiary:       b.kind,
		BeneficiaryExempt: b.exempt,
		Explicit:          tx.WHTExplicit,
	})
	if err != nil {
		return err
	}
	tx.WHTAmount = amount
	return nil
}

func (s *whtService) SyncLedger(ctx context.Context, entity *domain.Entity, tx *domain.Transaction) (*domain.WHTCreditEntry, error) {
	if _, err := s.RemoveLedger(ctx, entity.ID, tx.ID); err != nil {
		return nil, err
	}
	if !tx.IsSettled() || !tx.HasWithholding() || !tx.WHTAmount.IsPositive() {
		return nil, nil
	}

	txID := tx.ID
	report := s.rules.Check(ctx, tx, validator.ConcernWHT)
	if !report.Valid() {
		err := report.Err()
		s.reject(ctx, entity, tx, err)
		return nil, err
	}

	b, err := s.beneficiaryOf(ctx, entity, tx, false)
	if err != nil {
		s.reject(ctx, entity, tx, err)
		return nil, err
	}
	key, err := taxcalc.CreditIdentity(b.taxID)
	if err != nil {
		idErr := &domain.IdentityError{TransactionRef: tx.Ref(), Reason: "beneficiary tax id is missing"}
		if b.direction == domain.LedgerDirectionCredit {
			idErr.Reason = "entity tax id is missing"
		}
		s.reject(ctx, entity, tx, idErr)
		return nil, idErr
	}
	base, err := s.baseOf(tx)
	if err != nil {
		return nil, err
	}

	entry := &domain.WHTCreditEntry{
		ID:              uuid.New(),
		TransactionID:   txID,
		EntityID:        entity.ID,
		Concern:         domain.LedgerConcernWHT,
		Direction:       b.direction,
		PayeeKey:        key,
		PayeeName:       b.name,
		PayeeTaxID:      taxcalc.NormalizeTaxID(b.taxID),
		PaymentType:     tx.WHTPaymentType,
		TaxYear:         tx.TaxYear(),
		BaseAmount:      base,
		Amount:          domain.RoundMoney(tx.WHTAmount),
		TransactionDate: tx.Date.UTC(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.ledgerRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("creating ledger entry for %s: %w", tx.Ref(), err)
	}
	s.audit.record(ctx, entity.ID, &txID, domain.AuditLedgerCreated, map[string]interface{}{
		"entry_id":     entry.ID,
		"payee_key":    entry.PayeeKey,
		"direction":    entry.Direction,
		"payment_type": entry.PaymentType,
		"tax_year":     entry.TaxYear,
		"amount":       entry.Amount,
	})
	return entry, nil
}

func (s *whtService) reject(ctx context.Context, entity *domain.Entity, tx *domain.Transaction, err error) {
	txID := tx.ID
	s.logger.Warn("whtService.SyncLedger: no ledger entry created",
		zap.Stringer("entity_id", entity.ID),
		zap.Stringer("transaction_id", tx.ID),
		zap.String("kind", string(domain.KindOf(err))),
		zap.Error(err))
	s.audit.record(ctx, entity.ID, &txID, domain.AuditLedgerRejected, map[string]interface{}{
		"reason": err.Error(),
	})
}

func (s *whtService) RemoveLedger(ctx context.Context, entityID, txID uuid.UUID) ([]domain.WHTCreditEntry, error) {
	deleted, err := s.ledgerRepo.DeleteByTransaction(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("deleting ledger entries for %s: %w", txID, err)
	}
	for i := range deleted {
		e := &deleted[i]
		s.audit.record(ctx, entityID, &txID, domain.AuditLedgerDeleted, map[string]interface{}{
			"entry_id":  e.ID,
			"payee_key": e.PayeeKey,
			"tax_year":  e.TaxYear,
			"amount":    e.Amount,
		})
	}
	return deleted, nil
}

func (s *whtService) TotalCredits(ctx context.Context, payeeKey string, taxYear int) (decimal.Decimal, error) {
	entries, err := s.ledgerRepo.ListByPayee(ctx, payeeKey, taxYear)
	if err != nil {
		return decimal.Zero, fmt.Errorf("listing ledger entries: %w", err)
	}
	return taxcalc.DistinctCredits(entries), nil
}

func (s *whtService) ApplyCredit(liability, credits decimal.Decimal) domain.CreditApplication {
	return taxcalc.ApplyCredit(liability, credits)
}

func (s *whtService) RecomputePeriodSummary(ctx context.Context, entity *domain.Entity, period domain.TaxPeriod) (*domain.WHTSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.table.ForYear(period.Year); err != nil {
		return nil, err
	}
	txs, err := s.txRepo.ListByEntity(ctx, entity.ID, domain.PeriodFilter(period, domain.TransactionStatusSettled))
	if err != nil {
		return nil, fmt.Errorf("listing settled transactions for %s: %w", period, err)
	}

	summary := &domain.WHTSummary{
		EntityID:    entity.ID,
		PeriodYear:  period.Year,
		PeriodMonth: period.Month,
	}
	credits, remitted := decimal.Zero, decimal.Zero
	for i := range txs {
		tx := &txs[i]
		if !tx.HasWithholding() || !tx.WHTAmount.IsPositive() {
			continue
		}
		report := s.rules.Check(ctx, tx, validator.ConcernWHT)
		if !report.Valid() {
			summary.SkippedCount++
			s.logger.Warn("whtService.RecomputePeriodSummary: skipping transaction",
				zap.Stringer("entity_id", entity.ID),
				zap.Stringer("transaction_id", tx.ID),
				zap.Stringer("period", period),
				zap.Error(report.Err()))
			continue
		}
		if tx.IsSale() {
			credits = credits.Add(tx.WHTAmount)
			summary.CreditEntries++
		} else {
			remitted = remitted.Add(tx.WHTAmount)
			summary.RemittanceEntries++
		}
	}
	summary.CreditsReceived = domain.RoundMoney(credits)
	summary.WithheldRemitted = domain.RoundMoney(remitted)
	return summary, nil
}
