package ratetable

import (
	"github.com/shopspring/decimal"

	"taxengine/internal/domain"
)

// DefaultMinYear is the earliest tax year the built-in tables cover.
const DefaultMinYear = 2024

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Default returns the built-in tables for 2024 to 2026.
func Default() *Table {
	return MustNew(DefaultMinYear, defaultYear(2024), defaultYear(2025), defaultYear(2026))
}

var serviceTypes = []domain.PaymentType{
	domain.PaymentTypeProfessional,
	domain.PaymentTypeConsultancy,
	domain.PaymentTypeManagementService,
	domain.PaymentTypeTechnicalService,
	domain.PaymentTypeContractSupply,
}

func corporateWithholding() map[domain.PaymentType]decimal.Decimal {
	return map[domain.PaymentType]decimal.Decimal{
		domain.PaymentTypeDividend:          d("0.10"),
		domain.PaymentTypeInterest:          d("0.10"),
		domain.PaymentTypeRent:              d("0.10"),
		domain.PaymentTypeRoyalty:           d("0.10"),
		domain.PaymentTypeCommission:        d("0.10"),
		domain.PaymentTypeProfessional:      d("0.10"),
		domain.PaymentTypeConsultancy:       d("0.10"),
		domain.PaymentTypeManagementService: d("0.10"),
		domain.PaymentTypeTechnicalService:  d("0.10"),
		domain.PaymentTypeConstruction:      d("0.025"),
		domain.PaymentTypeContractSupply:    d("0.02"),
		domain.PaymentTypeDirectorFee:       d("0.15"),
	}
}

func individualWithholding() map[domain.PaymentType]decimal.Decimal {
	return map[domain.PaymentType]decimal.Decimal{
		domain.PaymentTypeDividend:          d("0.10"),
		domain.PaymentTypeInterest:          d("0.10"),
		domain.PaymentTypeRent:              d("0.10"),
		domain.PaymentTypeRoyalty:           d("0.05"),
		domain.PaymentTypeCommission:        d("0.05"),
		domain.PaymentTypeProfessional:      d("0.05"),
		domain.PaymentTypeConsultancy:       d("0.05"),
		domain.PaymentTypeManagementService: d("0.05"),
		domain.PaymentTypeTechnicalService:  d("0.05"),
		domain.PaymentTypeConstruction:      d("0.05"),
		domain.PaymentTypeContractSupply:    d("0.02"),
		domain.PaymentTypeDirectorFee:       d("0.15"),
	}
}

func legacyBrackets() []Bracket {
	return []Bracket{
		{Min: d("0"), Max: d("300000"), Rate: d("0.07"), Label: "first 300k"},
		{Min: d("300000"), Max: d("600000"), Rate: d("0.11"), Label: "next 300k"},
		{Min: d("600000"), Max: d("1100000"), Rate: d("0.15"), Label: "next 500k"},
		{Min: d("1100000"), Max: d("1600000"), Rate: d("0.19"), Label: "next 500k"},
		{Min: d("1600000"), Max: d("3200000"), Rate: d("0.21"), Label: "next 1.6m"},
		{Min: d("3200000"), Rate: d("0.24"), Label: "above 3.2m"},
	}
}

func reformBrackets() []Bracket {
	return []Bracket{
		{Min: d("0"), Max: d("800000"), Rate: d("0"), Label: "first 800k"},
		{Min: d("800000"), Max: d("3000000"), Rate: d("0.15"), Label: "next 2.2m"},
		{Min: d("3000000"), Max: d("12000000"), Rate: d("0.18"), Label: "next 9m"},
		{Min: d("12000000"), Max: d("25000000"), Rate: d("0.21"), Label: "next 13m"},
		{Min: d("25000000"), Max: d("50000000"), Rate: d("0.23"), Label: "next 25m"},
		{Min: d("50000000"), Rate: d("0.25"), Label: "above 50m"},
	}
}

func defaultYear(year int) *YearTable {
	y := &YearTable{
		Year:    year,
		VATRate: d("0.075"),
		Entities: map[domain.EntityKind]*EntityRules{
			domain.EntityKindIncorporated: {
				ConsumptionTaxThreshold:       d("25000000"),
				WithholdingExemptionThreshold: d("20000000"),
				IncomeTiers: []IncomeTier{
					{Name: "small", MaxTurnover: d("25000000"), Rate: d("0")},
					{Name: "medium", MaxTurnover: d("100000000"), Rate: d("0.20")},
					{Name: "large", Rate: d("0.30")},
				},
				WithholdingRates: corporateWithholding(),
			},
			domain.EntityKindSoleProprietor: {
				ConsumptionTaxThreshold:       d("25000000"),
				WithholdingExemptionThreshold: d("20000000"),
				IncomeTiers: []IncomeTier{
					{Name: "small", MaxTurnover: d("25000000")},
					{Name: "standard"},
				},
				WithholdingRates: individualWithholding(),
			},
		},
		Withholding: WithholdingRules{
			ServiceTypes: serviceTypes,
		},
		PersonalIncome: PersonalIncome{
			Brackets: legacyBrackets(),
			Relief: Relief{
				Enabled:      true,
				FixedFloor:   d("200000"),
				FloorPercent: d("0.01"),
				GrossPercent: d("0.20"),
			},
		},
		Deadlines: Deadlines{
			VATDueDay:             21,
			WHTDueDay:             21,
			CorporateReturnMonths: 6,
			PersonalReturnMonths:  3,
		},
	}
	if year >= 2025 {
		y.Withholding.ServicePaymentCeiling = d("2000000")
	}
	if year >= 2026 {
		y.Entities[domain.EntityKindIncorporated].IncomeTiers = []IncomeTier{
			{Name: "small", MaxTurnover: d("50000000"), Rate: d("0")},
			{Name: "large", Rate: d("0.30")},
		}
		y.PersonalIncome = PersonalIncome{Brackets: reformBrackets()}
	}
	return y
}
