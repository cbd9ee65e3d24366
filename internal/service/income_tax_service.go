package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"taxengine/internal/domain"
	"taxengine/internal/logger"
	"taxengine/internal/port"
	"taxengine/internal/ratetable"
	"taxengine/internal/taxcalc"
)

// IncomeTaxService computes final annual income tax liability.
type IncomeTaxService interface {
	// ComputeIncomeTaxLiability returns the liability of an entity for a tax
	// year after withholding credits. Incorporated entities pay a flat rate
	// chosen by their turnover tier; sole proprietors walk the personal brackets.
	ComputeIncomeTaxLiability(ctx context.Context, in *domain.IncomeTaxInput) (*domain.LiabilityBreakdown, error)
}

type incomeTaxService struct {
	entityRepo port.EntityRepository
	turnover   TurnoverCalculator
	classifier Classifier
	wht        WHTService
	table      *ratetable.Table
	logger     *zap.Logger
}

// NewIncomeTaxService creates a new IncomeTaxService.
func NewIncomeTaxService(
	entityRepo port.EntityRepository,
	turnover TurnoverCalculator,
	classifier Classifier,
	wht WHTService,
	table *ratetable.Table,
	log *zap.Logger,
) IncomeTaxService {
	return &incomeTaxService{
		entityRepo: entityRepo,
		turnover:   turnover,
		classifier: classifier,
		wht:        wht,
		table:      table,
		logger:     logger.OrNop(log),
	}
}

func (s *incomeTaxService) ComputeIncomeTaxLiability(ctx context.Context, in *domain.IncomeTaxInput) (*domain.LiabilityBreakdown, error) {
	if in == nil {
		return nil, fmt.Errorf("income tax input is required: %w", domain.ErrInvalidInput)
	}
	entity, err := s.entityRepo.GetByID(ctx, in.EntityID)
	if err != nil {
		return nil, fmt.Errorf("loading entity %s: %w", in.EntityID, err)
	}
	kind := in.EntityKind
	if kind == "" {
		kind = entity.Kind
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("entity kind %q: %w", kind, domain.ErrInvalidInput)
	}
	yt, err := s.table.ForYear(in.TaxYear)
	if err != nil {
		return nil, err
	}

	gross := in.GrossIncome
	if in.DeriveGrossIncome {
		gross, err = s.turnover.AnnualTurnover(ctx, entity, in.TaxYear, domain.BasisCash)
		if err != nil {
			return nil, err
		}
	}
	if gross.IsNegative() {
		return nil, fmt.Errorf("gross income %s: %w", gross, domain.ErrInvalidInput)
	}

	out := &domain.LiabilityBreakdown{
		EntityID:    entity.ID,
		EntityKind:  kind,
		TaxYear:     in.TaxYear,
		GrossIncome: domain.RoundMoney(gross),
		Deductions:  domain.RoundMoney(in.Deductions.Total()),
	}

	if kind.UsesBrackets() {
		out.ReliefAllowance = taxcalc.ReliefAllowance(out.GrossIncome, yt.PersonalIncome.Relief)
		out.TaxableIncome = domain.RoundMoney(domain.MaxZero(out.GrossIncome.Sub(out.Deductions).Sub(out.ReliefAllowance)))
		out.GrossTax, out.Bands = taxcalc.BracketTax(out.TaxableIncome, yt.PersonalIncome.Brackets)
	} else {
		// The tier is always derived from current turnover, never from a stored value.
		turnover, err := s.turnover.AnnualTurnover(ctx, entity, in.TaxYear, domain.BasisAccrual)
		if err != nil {
			return nil, err
		}
		tier, err := s.classifier.Classify(turnover, in.TaxYear, kind, domain.ConcernIncomeTaxTier, entity.IsVATRegistered())
		if err != nil {
			return nil, err
		}
		it, err := yt.IncomeTierNamed(kind, string(tier))
		if err != nil {
			return nil, err
		}
		out.Tier = tier
		out.FlatRate = it.Rate
		out.TaxableIncome = domain.RoundMoney(domain.MaxZero(out.GrossIncome.Sub(out.Deductions)))
		out.GrossTax = taxcalc.FlatTax(out.TaxableIncome, it.Rate)
	}

	credits, err := s.availableCredits(ctx, entity, in.TaxYear)
	if err != nil {
		return nil, err
	}
	applied := s.wht.ApplyCredit(out.GrossTax, credits)
	out.CreditsAvailable = credits
	out.CreditConsumed = applied.CreditConsumed
	out.NetLiability = applied.NetLiability

	s.logger.Debug("incomeTaxService.ComputeIncomeTaxLiability: computed",
		zap.Stringer("entity_id", entity.ID),
		zap.Int("tax_year", in.TaxYear),
		zap.String("kind", string(kind)),
		zap.String("gross_tax", out.GrossTax.String()),
		zap.String("net_liability", out.NetLiability.String()))
	return out, nil
}

// availableCredits sums the withholding credited to the entity's tax id. An
// entity without a tax id cannot hold credits.
func (s *incomeTaxService) availableCredits(ctx context.Context, entity *domain.Entity, taxYear int) (decimal.Decimal, error) {
	key, err := taxcalc.CreditIdentity(entity.TaxID)
	if errors.Is(err, domain.ErrPayeeIdentityRequired) {
		s.logger.Info("incomeTaxService.availableCredits: entity has no tax id, no credits applied",
			zap.Stringer("entity_id", entity.ID))
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return s.wht.TotalCredits(ctx, key, taxYear)
}
