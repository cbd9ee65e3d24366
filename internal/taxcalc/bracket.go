// Package taxcalc holds the pure arithmetic of the engine. Every function
// rounds its monetary result to two places where it is produced.
package taxcalc

import (
	"github.com/shopspring/decimal"

	"taxengine/internal/domain"
	"taxengine/internal/ratetable"
)

// BracketTax walks the ordered brackets and returns the total tax on income
// together with one line per band that received a contribution. The walk
// stops at the first band whose floor is at or above income, so income that
// sits exactly on a boundary takes nothing from the band starting there.
func BracketTax(income decimal.Decimal, brackets []ratetable.Bracket) (decimal.Decimal, []domain.BandTax) {
	income = domain.MaxZero(income)
	total := decimal.Zero
	var lines []domain.BandTax
	for _, b := range brackets {
		if income.LessThanOrEqual(b.Min) {
			break
		}
		upper := income
		if !b.Unbounded() && income.GreaterThan(b.Max) {
			upper = b.Max
		}
		taxable := upper.Sub(b.Min)
		tax := domain.RoundMoney(taxable.Mul(b.Rate))
		lines = append(lines, domain.BandTax{
			Label:   b.Label,
			Min:     b.Min,
			Max:     b.Max,
			Rate:    b.Rate,
			Taxable: taxable,
			Tax:     tax,
		})
		total = total.Add(tax)
	}
	return domain.RoundMoney(total), lines
}

// FlatTax applies a single rate to the non-negative part of income.
func FlatTax(income, rate decimal.Decimal) decimal.Decimal {
	return domain.RoundMoney(domain.MaxZero(income).Mul(rate))
}

// ReliefAllowance is the consolidated relief on gross personal income, or
// zero when the year has abolished it.
func ReliefAllowance(gross decimal.Decimal, r ratetable.Relief) decimal.Decimal {
	if !r.Enabled {
		return decimal.Zero
	}
	gross = domain.MaxZero(gross)
	floor := decimal.Max(r.FixedFloor, gross.Mul(r.FloorPercent))
	return domain.RoundMoney(floor.Add(gross.Mul(r.GrossPercent)))
}
