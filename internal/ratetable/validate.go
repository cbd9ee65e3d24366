package ratetable

import (
	"fmt"

	"github.com/shopspring/decimal"

	"taxengine/internal/domain"
)

var one = decimal.NewFromInt(1)

// Validate checks that the year table is complete and internally consistent.
func (y *YearTable) Validate() error {
	if y.VATRate.LessThanOrEqual(decimal.Zero) || y.VATRate.GreaterThanOrEqual(one) {
		return domain.NewConfigError(y.Year, "vat_rate", fmt.Errorf("rate %s outside (0,1): %w", y.VATRate, domain.ErrMissingRate))
	}
	for _, kind := range []domain.EntityKind{domain.EntityKindIncorporated, domain.EntityKindSoleProprietor} {
		r, err := y.Rules(kind)
		if err != nil {
			return err
		}
		if err := r.validate(y.Year, kind); err != nil {
			return err
		}
	}
	for kind := range y.Entities {
		if !kind.Valid() {
			return domain.NewConfigError(y.Year, "entities."+string(kind), fmt.Errorf("unknown entity kind: %w", domain.ErrInvalidInput))
		}
	}
	if y.Withholding.ServicePaymentCeiling.IsNegative() {
		return domain.NewConfigError(y.Year, "withholding.service_payment_ceiling", domain.ErrNegativeAmount)
	}
	if err := ValidateBrackets(y.PersonalIncome.Brackets); err != nil {
		return domain.NewConfigError(y.Year, "personal_income.brackets", err)
	}
	if err := y.PersonalIncome.Relief.validate(); err != nil {
		return domain.NewConfigError(y.Year, "personal_income.relief", err)
	}
	return y.Deadlines.validate(y.Year)
}

func (r *EntityRules) validate(year int, kind domain.EntityKind) error {
	prefix := "entities." + string(kind)
	if !r.ConsumptionTaxThreshold.IsPositive() {
		return domain.NewConfigError(year, prefix+".consumption_tax_threshold", domain.ErrMissingRate)
	}
	if !r.WithholdingExemptionThreshold.IsPositive() {
		return domain.NewConfigError(year, prefix+".withholding_exemption_threshold", domain.ErrMissingRate)
	}
	if len(r.IncomeTiers) == 0 {
		return domain.NewConfigError(year, prefix+".income_tiers", domain.ErrMissingRate)
	}
	prev := decimal.Zero
	for i, tier := range r.IncomeTiers {
		key := fmt.Sprintf("%s.income_tiers[%d]", prefix, i)
		last := i == len(r.IncomeTiers)-1
		switch {
		case tier.Name == "":
			return domain.NewConfigError(year, key, fmt.Errorf("tier name is empty: %w", domain.ErrInvalidInput))
		case !inUnitRange(tier.Rate):
			return domain.NewConfigError(year, key, fmt.Errorf("rate %s outside [0,1]: %w", tier.Rate, domain.ErrInvalidInput))
		case last && !tier.MaxTurnover.IsZero():
			return domain.NewConfigError(year, key, fmt.Errorf("last tier must be unbounded: %w", domain.ErrInvalidInput))
		case !last && tier.MaxTurnover.LessThanOrEqual(prev):
			return domain.NewConfigError(year, key, fmt.Errorf("tier ceilings must increase: %w", domain.ErrInvalidInput))
		}
		prev = tier.MaxTurnover
	}
	for pt, rate := range r.WithholdingRates {
		if !rate.IsPositive() || rate.GreaterThan(one) {
			return domain.NewConfigError(year, fmt.Sprintf("%s.withholding_rates.%s", prefix, pt),
				fmt.Errorf("rate %s outside (0,1]: %w", rate, domain.ErrInvalidInput))
		}
	}
	return nil
}

func (r Relief) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.FixedFloor.IsNegative() {
		return domain.ErrNegativeAmount
	}
	if !inUnitRange(r.FloorPercent) || !inUnitRange(r.GrossPercent) {
		return fmt.Errorf("relief percentages must be within [0,1]: %w", domain.ErrInvalidInput)
	}
	return nil
}

func (d Deadlines) validate(year int) error {
	if d.VATDueDay < 1 || d.VATDueDay > 28 {
		return domain.NewConfigError(year, "deadlines.vat_due_day", domain.ErrMissingRate)
	}
	if d.WHTDueDay < 1 || d.WHTDueDay > 28 {
		return domain.NewConfigError(year, "deadlines.wht_due_day", domain.ErrMissingRate)
	}
	if d.CorporateReturnMonths < 1 || d.CorporateReturnMonths > 12 {
		return domain.NewConfigError(year, "deadlines.corporate_return_months", domain.ErrMissingRate)
	}
	if d.PersonalReturnMonths < 1 || d.PersonalReturnMonths > 12 {
		return domain.NewConfigError(year, "deadlines.personal_return_months", domain.ErrMissingRate)
	}
	return nil
}

// ValidateBrackets checks that brackets tile [0, inf) in order: the first
// starts at zero, each starts where the previous ended, only the last is
// unbounded and every rate is within [0,1].
func ValidateBrackets(brackets []Bracket) error {
	if len(brackets) == 0 {
		return fmt.Errorf("no brackets: %w", domain.ErrMalformedBrackets)
	}
	if !brackets[0].Min.IsZero() {
		return fmt.Errorf("first bracket starts at %s, not 0: %w", brackets[0].Min, domain.ErrMalformedBrackets)
	}
	for i, b := range brackets {
		last := i == len(brackets)-1
		if !inUnitRange(b.Rate) {
			return fmt.Errorf("bracket %d rate %s outside [0,1]: %w", i, b.Rate, domain.ErrMalformedBrackets)
		}
		if last {
			if !b.Unbounded() {
				return fmt.Errorf("top bracket must be unbounded: %w", domain.ErrMalformedBrackets)
			}
			continue
		}
		if b.Unbounded() {
			return fmt.Errorf("bracket %d is unbounded but not last: %w", i, domain.ErrMalformedBrackets)
		}
		if b.Max.LessThanOrEqual(b.Min) {
			return fmt.Errorf("bracket %d is empty [%s, %s): %w", i, b.Min, b.Max, domain.ErrMalformedBrackets)
		}
		if next := brackets[i+1]; !next.Min.Equal(b.Max) {
			return fmt.Errorf("gap or overlap between bracket %d and %d: %w", i, i+1, domain.ErrMalformedBrackets)
		}
	}
	return nil
}

func inUnitRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(one)
}
