package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taxengine/internal/domain"
	"taxengine/internal/ratetable"
	"taxengine/internal/service"
	"taxengine/internal/taxcalc"
	"taxengine/mocks"
)

func TestWHT_RatesByBeneficiaryKind(t *testing.T) {
	f := newFixture(t)

	rate, err := f.wht.WithholdingRate(domain.PaymentTypeProfessional, domain.EntityKindIncorporated, 2026)
	require.NoError(t, err)
	assert.Equal(t, "0.1", rate.String())

	rate, err = f.wht.WithholdingRate(domain.PaymentTypeProfessional, domain.EntityKindSoleProprietor, 2026)
	require.NoError(t, err)
	assert.Equal(t, "0.05", rate.String())

	_, err = f.wht.WithholdingRate(domain.PaymentType("lottery"), domain.EntityKindIncorporated, 2026)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrMissingRate)
}

func TestWHT_ComputeWithholding(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   service.WithholdingInput
		want string
		err  error
	}{
		{
			name: "auto rent on corporate",
			in:   service.WithholdingInput{Base: dec("1000000"), PaymentType: domain.PaymentTypeRent, TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated},
			want: "100000.00",
		},
		{
			name: "auto on exempt beneficiary",
			in:   service.WithholdingInput{Base: dec("1000000"), PaymentType: domain.PaymentTypeRent, TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated, BeneficiaryExempt: true},
			want: "0.00",
		},
		{
			name: "explicit overrides exemption",
			in:   service.WithholdingInput{Base: dec("1000000"), PaymentType: domain.PaymentTypeRent, TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated, BeneficiaryExempt: true, Explicit: true},
			want: "100000.00",
		},
		{
			name: "auto small qualifying service",
			in:   service.WithholdingInput{Base: dec("2000000"), PaymentType: domain.PaymentTypeProfessional, TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated},
			want: "0.00",
		},
		{
			name: "auto service above ceiling",
			in:   service.WithholdingInput{Base: dec("2000000.01"), PaymentType: domain.PaymentTypeProfessional, TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated},
			want: "200000.00",
		},
		{
			name: "no ceiling in 2024",
			in:   service.WithholdingInput{Base: dec("1000000"), PaymentType: domain.PaymentTypeProfessional, TaxYear: 2024, Beneficiary: domain.EntityKindSoleProprietor},
			want: "50000.00",
		},
		{
			name: "explicit small service",
			in:   service.WithholdingInput{Base: dec("1000000"), PaymentType: domain.PaymentTypeConsultancy, TaxYear: 2026, Beneficiary: domain.EntityKindSoleProprietor, Explicit: true},
			want: "50000.00",
		},
		{
			name: "no type selected",
			in:   service.WithholdingInput{Base: dec("1000000"), TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated},
			want: "0.00",
		},
		{
			name: "explicit without type",
			in:   service.WithholdingInput{Base: dec("1000000"), TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated, Explicit: true},
			err:  domain.ErrInvalidWithholding,
		},
		{
			name: "explicit on zero base",
			in:   service.WithholdingInput{Base: decimal.Zero, PaymentType: domain.PaymentTypeRent, TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated, Explicit: true},
			err:  domain.ErrInvalidWithholding,
		},
		{
			name: "negative base",
			in:   service.WithholdingInput{Base: dec("-1"), PaymentType: domain.PaymentTypeRent, TaxYear: 2026, Beneficiary: domain.EntityKindIncorporated},
			err:  domain.ErrNegativeAmount,
		},
		{
			name: "unsupported year",
			in:   service.WithholdingInput{Base: dec("1"), PaymentType: domain.PaymentTypeRent, TaxYear: 2020, Beneficiary: domain.EntityKindIncorporated},
			err:  domain.ErrUnsupportedTaxYear,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.wht.ComputeWithholding(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assertMoney(t, tt.want, got)
		})
	}
}

func TestWHT_PrepareTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.entity(domain.EntityKindIncorporated, "TIN-300")

	t.Run("purchase from small payee in auto mode", func(t *testing.T) {
		p := purchase(e.ID, day(2026, time.May, 1), "5000000", domain.TransactionStatusSettled)
		p.WHTPaymentType = domain.PaymentTypeRent
		p.Payee = &domain.Payee{Name: "Kiosk", TaxID: "P-1", Tier: domain.PayeeTierSmallCorporate}
		require.NoError(t, f.wht.PrepareTransaction(ctx, e, p))
		assert.True(t, p.WHTAmount.IsZero())
	})

	t.Run("purchase from individual payee", func(t *testing.T) {
		p := purchase(e.ID, day(2026, time.May, 1), "5000000", domain.TransactionStatusSettled)
		p.WHTPaymentType = domain.PaymentTypeProfessional
		p.Payee = &domain.Payee{Name: "Jo", TaxID: "P-2", Tier: domain.PayeeTierIndividual}
		require.NoError(t, f.wht.PrepareTransaction(ctx, e, p))
		assertMoney(t, "250000.00", p.WHTAmount)
	})

	t.Run("purchase without payee tier", func(t *testing.T) {
		p := purchase(e.ID, day(2026, time.May, 1), "5000000", domain.TransactionStatusSettled)
		p.WHTPaymentType = domain.PaymentTypeRent
		p.Payee = &domain.Payee{Name: "Anon", TaxID: "P-3"}
		err := f.wht.PrepareTransaction(ctx, e, p)
		assert.Equal(t, domain.KindIdentity, domain.KindOf(err))
		assert.True(t, p.WHTAmount.IsZero())
	})

	t.Run("sale by entity below the withholding line", func(t *testing.T) {
		s := sale(e.ID, day(2026, time.May, 1), "5000000", domain.TransactionStatusSettled)
		s.WHTPaymentType = domain.PaymentTypeRent
		require.NoError(t, f.wht.PrepareTransaction(ctx, e, s))
		assert.True(t, s.WHTAmount.IsZero())

		s.WHTExplicit = true
		require.NoError(t, f.wht.PrepareTransaction(ctx, e, s))
		assertMoney(t, "500000.00", s.WHTAmount)
	})

	t.Run("explicit without type", func(t *testing.T) {
		s := sale(e.ID, day(2026, time.May, 1), "5000000", domain.TransactionStatusSettled)
		s.WHTExplicit = true
		assert.ErrorIs(t, f.wht.PrepareTransaction(ctx, e, s), domain.ErrInvalidWithholding)
	})

	t.Run("no type clears a stale amount", func(t *testing.T) {
		s := sale(e.ID, day(2026, time.May, 1), "5000000", domain.TransactionStatusSettled)
		s.WHTAmount = dec("10")
		require.NoError(t, f.wht.PrepareTransaction(ctx, e, s))
		assert.True(t, s.WHTAmount.IsZero())
	})
}

func withholdingPurchase(entityID uuid.UUID, date time.Time, amount, wht string, payee *domain.Payee) *domain.Transaction {
	p := purchase(entityID, date, amount, domain.TransactionStatusSettled)
	p.WHTPaymentType = domain.PaymentTypeRent
	p.WHTAmount = dec(wht)
	p.Payee = payee
	return p
}

func TestWHT_SyncLedgerCreatesOneEntryKeyedByPayee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.entity(domain.EntityKindIncorporated, "TIN-301")
	payee := &domain.Payee{Name: "Landlord", TaxID: "ll-42", Tier: domain.PayeeTierCorporate}
	p := withholdingPurchase(e.ID, day(2026, time.June, 1), "1000000", "100000", payee)

	entry, err := f.wht.SyncLedger(ctx, e, p)
	require.NoError(t, err)
	require.NotNil(t, entry)

	key, err := taxcalc.CreditIdentity("LL42")
	require.NoError(t, err)
	assert.Equal(t, key, entry.PayeeKey)
	assert.Equal(t, "LL42", entry.PayeeTaxID)
	assert.Equal(t, domain.LedgerDirectionRemittance, entry.Direction)
	assert.Equal(t, 2026, entry.TaxYear)
	assertMoney(t, "100000.00", entry.Amount)

	// A second sync replaces the entry instead of adding one.
	_, err = f.wht.SyncLedger(ctx, e, p)
	require.NoError(t, err)
	assert.Len(t, f.store.ledgerFor(p.ID), 1)

	total, err := f.wht.TotalCredits(ctx, key, 2026)
	require.NoError(t, err)
	assertMoney(t, "100000.00", total)

	assert.Contains(t, f.store.auditActions(), string(domain.AuditLedgerCreated))
	assert.Contains(t, f.store.auditActions(), string(domain.AuditLedgerDeleted))
}

func TestWHT_SaleCreditIsKeyedByEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.entity(domain.EntityKindIncorporated, "TIN-302")
	s := sale(e.ID, day(2026, time.June, 1), "1000000", domain.TransactionStatusSettled)
	s.WHTPaymentType = domain.PaymentTypeRent
	s.WHTAmount = dec("100000")

	entry, err := f.wht.SyncLedger(ctx, e, s)
	require.NoError(t, err)
	require.NotNil(t, entry)

	key, _ := taxcalc.CreditIdentity(e.TaxID)
	assert.Equal(t, key, entry.PayeeKey)
	assert.Equal(t, domain.LedgerDirectionCredit, entry.Direction)
}

func TestWHT_SyncLedgerIdentityErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.entity(domain.EntityKindIncorporated, "TIN-303")

	missing := withholdingPurchase(e.ID, day(2026, time.June, 1), "1000000", "100000", nil)
	entry, err := f.wht.SyncLedger(ctx, e, missing)
	assert.Nil(t, entry)
	assert.Equal(t, domain.KindIdentity, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrPayeeIdentityRequired)
	assert.Equal(t, 0, f.store.ledgerLen())
	assert.Contains(t, f.store.auditActions(), string(domain.AuditLedgerRejected))

	noTaxID := f.entity(domain.EntityKindIncorporated, "")
	s := sale(noTaxID.ID, day(2026, time.June, 1), "1000000", domain.TransactionStatusSettled)
	s.WHTPaymentType = domain.PaymentTypeRent
	s.WHTAmount = dec("100000")
	_, err = f.wht.SyncLedger(ctx, noTaxID, s)
	assert.Equal(t, domain.KindIdentity, domain.KindOf(err))
}

func TestWHT_SyncLedgerRemovesEntryWhenNoLongerSettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.entity(domain.EntityKindIncorporated, "TIN-304")
	payee := &domain.Payee{Name: "Landlord", TaxID: "LL-1", Tier: domain.PayeeTierCorporate}
	p := withholdingPurchase(e.ID, day(2026, time.June, 1), "1000000", "100000", payee)

	_, err := f.wht.SyncLedger(ctx, e, p)
	require.NoError(t, err)
	require.Len(t, f.store.ledgerFor(p.ID), 1)

	p.Status = domain.TransactionStatusPending
	entry, err := f.wht.SyncLedger(ctx, e, p)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, f.store.ledgerFor(p.ID))
}

func TestWHT_ApplyCredit(t *testing.T) {
	f := newFixture(t)

	got := f.wht.ApplyCredit(dec("1000"), dec("250"))
	assertMoney(t, "750.00", got.NetLiability)
	assertMoney(t, "250.00", got.CreditConsumed)

	got = f.wht.ApplyCredit(dec("1000"), dec("5000"))
	assertMoney(t, "0.00", got.NetLiability)
	assertMoney(t, "1000.00", got.CreditConsumed)
}

func TestWHT_PeriodSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.entity(domain.EntityKindIncorporated, "TIN-305")

	credit := sale(e.ID, day(2026, time.July, 1), "1000000", domain.TransactionStatusSettled)
	credit.WHTPaymentType = domain.PaymentTypeRent
	credit.WHTAmount = dec("100000")
	f.store.putTx(credit)

	payee := &domain.Payee{Name: "Landlord", TaxID: "LL-2", Tier: domain.PayeeTierCorporate}
	f.store.putTx(withholdingPurchase(e.ID, day(2026, time.July, 2), "500000", "50000", payee))
	// Unidentified payee: skipped with a warning.
	f.store.putTx(withholdingPurchase(e.ID, day(2026, time.July, 3), "500000", "50000", nil))

	pending := withholdingPurchase(e.ID, day(2026, time.July, 4), "500000", "50000", payee)
	pending.Status = domain.TransactionStatusPending
	f.store.putTx(pending)

	summary, err := f.wht.RecomputePeriodSummary(ctx, e, domain.TaxPeriod{Year: 2026, Month: 7})
	require.NoError(t, err)
	assertMoney(t, "100000.00", summary.CreditsReceived)
	assertMoney(t, "50000.00", summary.WithheldRemitted)
	assert.Equal(t, 1, summary.CreditEntries)
	assert.Equal(t, 1, summary.RemittanceEntries)
	assert.Equal(t, 1, summary.SkippedCount)
}

func TestWHT_LedgerStoreErrorsAreWrapped(t *testing.T) {
	ledger := new(mocks.MockWHTLedgerRepo)
	audit := new(mocks.MockTaxAuditRepo)
	table := ratetable.Default()
	txRepo := new(mocks.MockTransactionRepo)
	classifier := service.NewClassifier(service.NewTurnoverCalculator(txRepo, table, zap.NewNop()), table)
	svc := service.NewWHTService(txRepo, ledger, classifier, table, nil, audit, zap.NewNop())

	e := &domain.Entity{Kind: domain.EntityKindIncorporated, TaxID: "TIN-306"}
	p := withholdingPurchase(e.ID, day(2026, time.June, 1), "1000000", "100000",
		&domain.Payee{Name: "L", TaxID: "L-1", Tier: domain.PayeeTierCorporate})

	ledger.On("DeleteByTransaction", mock.Anything, p.ID).Return(nil, errors.New("deadlock detected"))

	_, err := svc.SyncLedger(context.Background(), e, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWHT_AuditFailureDoesNotBlockLedger(t *testing.T) {
	ledger := new(mocks.MockWHTLedgerRepo)
	audit := new(mocks.MockTaxAuditRepo)
	table := ratetable.Default()
	txRepo := new(mocks.MockTransactionRepo)
	classifier := service.NewClassifier(service.NewTurnoverCalculator(txRepo, table, zap.NewNop()), table)
	svc := service.NewWHTService(txRepo, ledger, classifier, table, nil, audit, zap.NewNop())

	e := &domain.Entity{Kind: domain.EntityKindIncorporated, TaxID: "TIN-307"}
	p := withholdingPurchase(e.ID, day(2026, time.June, 1), "1000000", "100000",
		&domain.Payee{Name: "L", TaxID: "L-1", Tier: domain.PayeeTierCorporate})

	ledger.On("DeleteByTransaction", mock.Anything, p.ID).Return([]domain.WHTCreditEntry{}, nil)
	ledger.On("Create", mock.Anything, mock.AnythingOfType("*domain.WHTCreditEntry")).Return(nil)
	audit.On("Create", mock.Anything, mock.AnythingOfType("*domain.TaxAuditEntry")).Return(errors.New("audit table missing"))

	entry, err := svc.SyncLedger(context.Background(), e, p)
	require.NoError(t, err)
	require.NotNil(t, entry)
	ledger.AssertExpectations(t)
	audit.AssertExpectations(t)
}
