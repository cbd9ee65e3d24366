package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxengine/internal/domain"
)

// creditSale stores a settled sale carrying a withholding and syncs its
// ledger entry, which credits the entity itself.
func creditSale(t *testing.T, f *fixture, e *domain.Entity, date time.Time, amount, wht string) *domain.Transaction {
	t.Helper()
	s := sale(e.ID, date, amount, domain.TransactionStatusSettled)
	s.WHTPaymentType = domain.PaymentTypeRent
	s.WHTExplicit = true
	s.WHTAmount = dec(wht)
	f.store.putTx(s)
	require.NoError(t, f.coordinator.OnTransactionCreated(context.Background(), s))
	return s
}

func TestIncomeTax_PersonalBracketScenario(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindSoleProprietor, "IND-1")

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:    e.ID,
		TaxYear:     2026,
		GrossIncome: dec("5000000"),
	})
	require.NoError(t, err)

	assertMoney(t, "5000000.00", out.TaxableIncome)
	assertMoney(t, "0.00", out.ReliefAllowance)
	assertMoney(t, "690000.00", out.GrossTax)
	assertMoney(t, "690000.00", out.NetLiability)
	require.Len(t, out.Bands, 3)
	assertMoney(t, "0.00", out.Bands[0].Tax)
	assertMoney(t, "330000.00", out.Bands[1].Tax)
	assertMoney(t, "360000.00", out.Bands[2].Tax)
	assert.Equal(t, domain.EntityKindSoleProprietor, out.EntityKind)
}

func TestIncomeTax_PersonalDeductionsAndCredits(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindSoleProprietor, "IND-2")
	creditSale(t, f, e, day(2026, time.March, 1), "1000000", "100000")

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:    e.ID,
		TaxYear:     2026,
		GrossIncome: dec("5500000"),
		Deductions: domain.Deductions{
			Pension:         dec("300000"),
			HousingFund:     dec("150000"),
			HealthInsurance: dec("50000"),
		},
	})
	require.NoError(t, err)

	assertMoney(t, "500000.00", out.Deductions)
	assertMoney(t, "5000000.00", out.TaxableIncome)
	assertMoney(t, "690000.00", out.GrossTax)
	assertMoney(t, "100000.00", out.CreditsAvailable)
	assertMoney(t, "100000.00", out.CreditConsumed)
	assertMoney(t, "590000.00", out.NetLiability)
}

func TestIncomeTax_LegacyReliefBefore2026(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindSoleProprietor, "IND-3")

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:    e.ID,
		TaxYear:     2025,
		GrossIncome: dec("1000000"),
	})
	require.NoError(t, err)

	// max(200,000, 1%) + 20% of gross
	assertMoney(t, "400000.00", out.ReliefAllowance)
	assertMoney(t, "600000.00", out.TaxableIncome)
	assertMoney(t, "54000.00", out.GrossTax)
}

func TestIncomeTax_DeductionsNeverMakeIncomeNegative(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindSoleProprietor, "IND-4")

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:    e.ID,
		TaxYear:     2026,
		GrossIncome: dec("100000"),
		Deductions:  domain.Deductions{Pension: dec("500000")},
	})
	require.NoError(t, err)
	assertMoney(t, "0.00", out.TaxableIncome)
	assertMoney(t, "0.00", out.NetLiability)
	assert.Empty(t, out.Bands)
}

func TestIncomeTax_CorporateSmallTierIsZeroRegardlessOfCredits(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindIncorporated, "CORP-1")
	creditSale(t, f, e, day(2026, time.February, 1), "40000000", "250000")

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:    e.ID,
		TaxYear:     2026,
		GrossIncome: dec("40000000"),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Tier("small"), out.Tier)
	assert.True(t, out.FlatRate.IsZero())
	assertMoney(t, "40000000.00", out.TaxableIncome)
	assertMoney(t, "0.00", out.GrossTax)
	assertMoney(t, "250000.00", out.CreditsAvailable)
	assertMoney(t, "0.00", out.CreditConsumed)
	assertMoney(t, "0.00", out.NetLiability)
}

func TestIncomeTax_CorporateFlatRateWithCredits(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindIncorporated, "CORP-2")
	creditSale(t, f, e, day(2026, time.February, 1), "60000000", "500000")

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:    e.ID,
		TaxYear:     2026,
		GrossIncome: dec("10000000"),
		Deductions:  domain.Deductions{Pension: dec("1000000")},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Tier("large"), out.Tier)
	assertMoney(t, "9000000.00", out.TaxableIncome)
	assertMoney(t, "2700000.00", out.GrossTax)
	assertMoney(t, "500000.00", out.CreditConsumed)
	assertMoney(t, "2200000.00", out.NetLiability)
}

func TestIncomeTax_DeriveGrossIncomeUsesCashTurnover(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindSoleProprietor, "IND-5")
	f.store.putTx(sale(e.ID, day(2026, time.March, 1), "3000000", domain.TransactionStatusSettled))
	f.store.putTx(sale(e.ID, day(2026, time.April, 1), "9000000", domain.TransactionStatusPending))

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:          e.ID,
		TaxYear:           2026,
		GrossIncome:       dec("1"),
		DeriveGrossIncome: true,
	})
	require.NoError(t, err)
	assertMoney(t, "3000000.00", out.GrossIncome)
	// 2.2M at 15%
	assertMoney(t, "330000.00", out.GrossTax)
}

func TestIncomeTax_EntityKindOverride(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindIncorporated, "CORP-3")

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:    e.ID,
		TaxYear:     2026,
		GrossIncome: dec("5000000"),
		EntityKind:  domain.EntityKindSoleProprietor,
	})
	require.NoError(t, err)
	assertMoney(t, "690000.00", out.GrossTax)
	assert.Empty(t, out.Tier)
}

func TestIncomeTax_NoTaxIDMeansNoCredits(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindSoleProprietor, "")

	out, err := f.incomeTax.ComputeIncomeTaxLiability(context.Background(), &domain.IncomeTaxInput{
		EntityID:    e.ID,
		TaxYear:     2026,
		GrossIncome: dec("5000000"),
	})
	require.NoError(t, err)
	assert.True(t, out.CreditsAvailable.IsZero())
	assertMoney(t, "690000.00", out.NetLiability)
}

func TestIncomeTax_Errors(t *testing.T) {
	f := newFixture(t)
	e := f.entity(domain.EntityKindSoleProprietor, "IND-6")
	ctx := context.Background()

	_, err := f.incomeTax.ComputeIncomeTaxLiability(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.incomeTax.ComputeIncomeTaxLiability(ctx, &domain.IncomeTaxInput{EntityID: uuid.New(), TaxYear: 2026})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.incomeTax.ComputeIncomeTaxLiability(ctx, &domain.IncomeTaxInput{EntityID: e.ID, TaxYear: 2023, GrossIncome: dec("1")})
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))

	_, err = f.incomeTax.ComputeIncomeTaxLiability(ctx, &domain.IncomeTaxInput{EntityID: e.ID, TaxYear: 2026, GrossIncome: dec("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.incomeTax.ComputeIncomeTaxLiability(ctx, &domain.IncomeTaxInput{EntityID: e.ID, TaxYear: 2026, EntityKind: "trust"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
