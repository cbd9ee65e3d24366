package taxcalc

import (
	"github.com/shopspring/decimal"

	"taxengine/internal/domain"
)

var one = decimal.NewFromInt(1)

// TaxableBase returns the tax-exclusive base of amount. A tax-inclusive
// amount is divided back out at rate.
func TaxableBase(amount decimal.Decimal, taxExclusive bool, rate decimal.Decimal) decimal.Decimal {
	if taxExclusive {
		return domain.RoundMoney(amount)
	}
	return domain.RoundMoney(amount.Div(one.Add(rate)))
}

// VATAmount is base times the standard rate.
func VATAmount(base, rate decimal.Decimal) decimal.Decimal {
	return domain.RoundMoney(base.Mul(rate))
}

// WithholdingAmount is base times the withholding rate.
func WithholdingAmount(base, rate decimal.Decimal) decimal.Decimal {
	return domain.RoundMoney(base.Mul(rate))
}
