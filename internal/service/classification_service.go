package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"taxengine/internal/domain"
	"taxengine/internal/ratetable"
)

// Classifier maps turnover to a tier per tax concern. Every concern reads its
// own threshold from the rate table.
type Classifier interface {
	Classify(turnover decimal.Decimal, taxYear int, kind domain.EntityKind, concern domain.TaxConcern, registered bool) (domain.Tier, error)
	// Evaluate recomputes accrual turnover and classifies the entity for every
	// concern. The result is valid for the current request only.
	Evaluate(ctx context.Context, entity *domain.Entity, taxYear int) (*domain.Classification, error)
}

type classifier struct {
	turnover TurnoverCalculator
	table    *ratetable.Table
}

// NewClassifier creates a new Classifier.
func NewClassifier(turnover TurnoverCalculator, table *ratetable.Table) Classifier {
	return &classifier{turnover: turnover, table: table}
}

func (c *classifier) Classify(turnover decimal.Decimal, taxYear int, kind domain.EntityKind, concern domain.TaxConcern, registered bool) (domain.Tier, error) {
	yt, rules, err := c.rulesFor(taxYear, kind)
	if err != nil {
		return "", err
	}
	return classify(yt, rules, turnover, kind, concern, registered)
}

func (c *classifier) rulesFor(taxYear int, kind domain.EntityKind) (*ratetable.YearTable, *ratetable.EntityRules, error) {
	yt, err := c.table.ForYear(taxYear)
	if err != nil {
		return nil, nil, err
	}
	rules, err := yt.Rules(kind)
	if err != nil {
		return nil, nil, err
	}
	return yt, rules, nil
}

func classify(yt *ratetable.YearTable, rules *ratetable.EntityRules, turnover decimal.Decimal, kind domain.EntityKind, concern domain.TaxConcern, registered bool) (domain.Tier, error) {
	switch concern {
	case domain.ConcernConsumptionTaxEligibility:
		if registered || turnover.GreaterThanOrEqual(rules.ConsumptionTaxThreshold) {
			return domain.TierEligible, nil
		}
		return domain.TierIneligible, nil
	case domain.ConcernWithholdingExemption:
		if turnover.LessThanOrEqual(rules.WithholdingExemptionThreshold) {
			return domain.TierExempt, nil
		}
		return domain.TierNotExempt, nil
	case domain.ConcernIncomeTaxTier:
		tier, err := yt.IncomeTierFor(kind, turnover)
		if err != nil {
			return "", err
		}
		return domain.Tier(tier.Name), nil
	}
	return "", fmt.Errorf("tax concern %q: %w", concern, domain.ErrInvalidInput)
}

func (c *classifier) Evaluate(ctx context.Context, entity *domain.Entity, taxYear int) (*domain.Classification, error) {
	if !entity.Kind.Valid() {
		return nil, fmt.Errorf("entity %s kind %q: %w", entity.ID, entity.Kind, domain.ErrInvalidInput)
	}
	yt, rules, err := c.rulesFor(taxYear, entity.Kind)
	if err != nil {
		return nil, err
	}
	turnover, err := c.turnover.AnnualTurnover(ctx, entity, taxYear, domain.BasisAccrual)
	if err != nil {
		return nil, err
	}

	registered := entity.IsVATRegistered()
	cls := &domain.Classification{
		EntityID:   entity.ID,
		EntityKind: entity.Kind,
		TaxYear:    taxYear,
		Turnover:   turnover,
		Registered: registered,

		ConsumptionTaxThreshold: rules.ConsumptionTaxThreshold,
		WithholdingThreshold:    rules.WithholdingExemptionThreshold,
	}
	if cls.ConsumptionTax, err = classify(yt, rules, turnover, entity.Kind, domain.ConcernConsumptionTaxEligibility, registered); err != nil {
		return nil, err
	}
	if cls.Withholding, err = classify(yt, rules, turnover, entity.Kind, domain.ConcernWithholdingExemption, registered); err != nil {
		return nil, err
	}
	if cls.IncomeTax, err = classify(yt, rules, turnover, entity.Kind, domain.ConcernIncomeTaxTier, registered); err != nil {
		return nil, err
	}
	return cls, nil
}
