package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entity is a taxpayer. Turnover and classification are always derived from
// its transactions and are deliberately not stored here.
type Entity struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	Kind                  EntityKind `db:"kind" json:"kind"`
	Name                  string     `db:"name" json:"name"`
	TaxID                 string     `db:"tax_id" json:"tax_id"`
	VATRegistrationNumber string     `db:"vat_registration_number" json:"vat_registration_number"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// IsVATRegistered reports whether the entity holds a consumption-tax registration number.
func (e *Entity) IsVATRegistered() bool {
	return strings.TrimSpace(e.VATRegistrationNumber) != ""
}

// Payee identifies the beneficiary of a withholding on a purchase.
type Payee struct {
	Name  string    `json:"name"`
	TaxID string    `json:"tax_id"`
	Tier  PayeeTier `json:"tier"`
}

// HasIdentity reports whether the payee can be attributed a withholding credit.
func (p *Payee) HasIdentity() bool {
	return p != nil && strings.TrimSpace(p.TaxID) != "" && p.Tier.Valid()
}

// Transaction is a Sale or a Purchase. Sales generate output tax and may have
// withholding deducted by the customer; purchases generate input tax and may
// require the entity to withhold on the supplier.
type Transaction struct {
	ID       uuid.UUID         `json:"id"`
	EntityID uuid.UUID         `json:"entity_id"`
	Kind     TransactionKind   `json:"kind"`
	Status   TransactionStatus `json:"status"`
	Date     time.Time         `json:"date"`

	// Amount is the entered amount. TaxExclusive reports whether it excludes VAT.
	Amount       decimal.Decimal `json:"amount"`
	TaxExclusive bool            `json:"tax_exclusive"`

	// VATExempt is nil when the caller left exemption to be derived.
	// VATExemptDerived marks a value filled in by the engine rather than
	// asserted by the caller; it is re-derived on every prepare. A caller
	// overriding a stored value must clear it.
	VATExempt        *bool           `json:"vat_exempt,omitempty"`
	VATExemptDerived bool            `json:"vat_exempt_derived"`
	VATAmount        decimal.Decimal `json:"vat_amount"`
	Deductible       bool            `json:"deductible"`

	WHTPaymentType PaymentType     `json:"wht_payment_type,omitempty"`
	WHTExplicit    bool            `json:"wht_explicit"`
	WHTAmount      decimal.Decimal `json:"wht_amount"`
	Payee          *Payee          `json:"payee,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSettled reports whether payment has completed.
func (t *Transaction) IsSettled() bool {
	return t.Status == TransactionStatusSettled
}

// IsSale reports whether t is the Sale variant.
func (t *Transaction) IsSale() bool {
	return t.Kind == TransactionKindSale
}

// IsPurchase reports whether t is the Purchase variant.
func (t *Transaction) IsPurchase() bool {
	return t.Kind == TransactionKindPurchase
}

// IsVATExempt treats an underived exemption as not exempt.
func (t *Transaction) IsVATExempt() bool {
	return t.VATExempt != nil && *t.VATExempt
}

// AssertsVATCharge reports whether the caller explicitly asserted the
// transaction is not exempt. A derived "not exempt" is no assertion.
func (t *Transaction) AssertsVATCharge() bool {
	return t.VATExempt != nil && !*t.VATExempt && !t.VATExemptDerived
}

// ResetDerivedVATExempt clears a previously derived exemption so it can be
// derived again. Caller assertions are left untouched.
func (t *Transaction) ResetDerivedVATExempt() {
	if t.VATExemptDerived {
		t.VATExempt = nil
		t.VATExemptDerived = false
	}
}

// DeriveVATExempt fills in the exemption when the caller left it open.
func (t *Transaction) DeriveVATExempt(exempt bool) {
	if t.VATExempt == nil {
		t.VATExempt = &exempt
		t.VATExemptDerived = true
	}
}

// HasWithholding reports whether a withholding payment type is tagged.
func (t *Transaction) HasWithholding() bool {
	return t.WHTPaymentType != PaymentTypeNone
}

// Period returns the monthly tax period the transaction falls in.
func (t *Transaction) Period() TaxPeriod {
	return MonthlyPeriod(t.Date.UTC())
}

// TaxYear returns the tax year of the transaction date.
func (t *Transaction) TaxYear() int {
	return t.Date.UTC().Year()
}

// Ref is the human-readable reference used in errors and logs.
func (t *Transaction) Ref() string {
	return t.ID.String()
}

// Bool returns a pointer to b, for populating VATExempt.
func Bool(b bool) *bool {
	return &b
}

// Classification is a request-scoped snapshot of an entity's tiers for one
// tax year. It must be recomputed before every liability-affecting use.
type Classification struct {
	EntityID       uuid.UUID       `json:"entity_id"`
	EntityKind     EntityKind      `json:"entity_kind"`
	TaxYear        int             `json:"tax_year"`
	Turnover       decimal.Decimal `json:"turnover"`
	Registered     bool            `json:"registered"`
	ConsumptionTax Tier            `json:"consumption_tax"`
	Withholding    Tier            `json:"withholding"`
	IncomeTax      Tier            `json:"income_tax"`

	ConsumptionTaxThreshold decimal.Decimal `json:"consumption_tax_threshold"`
	WithholdingThreshold    decimal.Decimal `json:"withholding_threshold"`
}

// VATEligible reports whether the entity may charge consumption tax.
func (c *Classification) VATEligible() bool {
	return c.ConsumptionTax == TierEligible
}

// WithholdingExempt reports whether customers must not withhold on the entity.
func (c *Classification) WithholdingExempt() bool {
	return c.Withholding == TierExempt
}

// VATSummary is the materialized consumption-tax position of an entity for a period.
type VATSummary struct {
	EntityID          uuid.UUID       `db:"entity_id" json:"entity_id"`
	PeriodYear        int             `db:"period_year" json:"period_year"`
	PeriodMonth       int             `db:"period_month" json:"period_month"`
	OutputVAT         decimal.Decimal `db:"output_vat" json:"output_vat"`
	InputVAT          decimal.Decimal `db:"input_vat" json:"input_vat"`
	ClaimableInputVAT decimal.Decimal `db:"claimable_input_vat" json:"claimable_input_vat"`
	NetVAT            decimal.Decimal `db:"net_vat" json:"net_vat"`
	Status            VATStatus       `db:"status" json:"status"`
	InputSuppressed   bool            `db:"input_suppressed" json:"input_suppressed"`
	AnnualTurnover    decimal.Decimal `db:"annual_turnover" json:"annual_turnover"`
	Exempt            bool            `db:"exempt" json:"exempt"`
	SalesCount        int             `db:"sales_count" json:"sales_count"`
	PurchaseCount     int             `db:"purchase_count" json:"purchase_count"`
	SkippedCount      int             `db:"skipped_count" json:"skipped_count"`
}

// Period returns the summary's period key.
func (s *VATSummary) Period() TaxPeriod {
	return TaxPeriod{Year: s.PeriodYear, Month: s.PeriodMonth}
}

// WHTSummary is the materialized withholding position of an entity for a period.
type WHTSummary struct {
	EntityID          uuid.UUID       `db:"entity_id" json:"entity_id"`
	PeriodYear        int             `db:"period_year" json:"period_year"`
	PeriodMonth       int             `db:"period_month" json:"period_month"`
	CreditsReceived   decimal.Decimal `db:"credits_received" json:"credits_received"`
	WithheldRemitted  decimal.Decimal `db:"withheld_remitted" json:"withheld_remitted"`
	CreditEntries     int             `db:"credit_entries" json:"credit_entries"`
	RemittanceEntries int             `db:"remittance_entries" json:"remittance_entries"`
	SkippedCount      int             `db:"skipped_count" json:"skipped_count"`
}

// Period returns the summary's period key.
func (s *WHTSummary) Period() TaxPeriod {
	return TaxPeriod{Year: s.PeriodYear, Month: s.PeriodMonth}
}

// WHTCreditEntry is one withholding ledger row. Entries are deleted and
// recreated when their source transaction changes, never updated.
type WHTCreditEntry struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	TransactionID   uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	EntityID        uuid.UUID       `db:"entity_id" json:"entity_id"`
	Concern         string          `db:"concern" json:"concern"`
	Direction       LedgerDirection `db:"direction" json:"direction"`
	PayeeKey        string          `db:"payee_key" json:"payee_key"`
	PayeeName       string          `db:"payee_name" json:"payee_name"`
	PayeeTaxID      string          `db:"payee_tax_id" json:"payee_tax_id"`
	PaymentType     PaymentType     `db:"payment_type" json:"payment_type"`
	TaxYear         int             `db:"tax_year" json:"tax_year"`
	BaseAmount      decimal.Decimal `db:"base_amount" json:"base_amount"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	TransactionDate time.Time       `db:"transaction_date" json:"transaction_date"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// CreditApplication is the result of offsetting withholding credits against a liability.
type CreditApplication struct {
	NetLiability   decimal.Decimal `json:"net_liability"`
	CreditConsumed decimal.Decimal `json:"credit_consumed"`
}

// Deductions are the statutory contributions allowed against personal income.
type Deductions struct {
	Pension         decimal.Decimal `json:"pension"`
	HousingFund     decimal.Decimal `json:"housing_fund"`
	HealthInsurance decimal.Decimal `json:"health_insurance"`
}

// Total sums the contributions, ignoring negative entries.
func (d Deductions) Total() decimal.Decimal {
	return MaxZero(d.Pension).Add(MaxZero(d.HousingFund)).Add(MaxZero(d.HealthInsurance))
}

// IncomeTaxInput is the request for a final income tax liability.
type IncomeTaxInput struct {
	EntityID    uuid.UUID       `json:"entity_id"`
	TaxYear     int             `json:"tax_year"`
	GrossIncome decimal.Decimal `json:"gross_income"`
	Deductions  Deductions      `json:"deductions"`
	EntityKind  EntityKind      `json:"entity_kind"`
	// DeriveGrossIncome replaces GrossIncome with cash-basis turnover.
	DeriveGrossIncome bool `json:"derive_gross_income"`
}

// BandTax is the contribution of one bracket to personal income tax.
type BandTax struct {
	Label   string          `json:"label"`
	Min     decimal.Decimal `json:"min"`
	Max     decimal.Decimal `json:"max"`
	Rate    decimal.Decimal `json:"rate"`
	Taxable decimal.Decimal `json:"taxable"`
	Tax     decimal.Decimal `json:"tax"`
}

// LiabilityBreakdown explains how a final income tax liability was reached.
type LiabilityBreakdown struct {
	EntityID         uuid.UUID       `json:"entity_id"`
	EntityKind       EntityKind      `json:"entity_kind"`
	TaxYear          int             `json:"tax_year"`
	GrossIncome      decimal.Decimal `json:"gross_income"`
	Deductions       decimal.Decimal `json:"deductions"`
	ReliefAllowance  decimal.Decimal `json:"relief_allowance"`
	TaxableIncome    decimal.Decimal `json:"taxable_income"`
	Tier             Tier            `json:"tier,omitempty"`
	FlatRate         decimal.Decimal `json:"flat_rate"`
	Bands            []BandTax       `json:"bands,omitempty"`
	GrossTax         decimal.Decimal `json:"gross_tax"`
	CreditsAvailable decimal.Decimal `json:"credits_available"`
	CreditConsumed   decimal.Decimal `json:"credit_consumed"`
	NetLiability     decimal.Decimal `json:"net_liability"`
}

// RecomputeRequest is a queued (entity, period) rebuild.
type RecomputeRequest struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	EntityID    uuid.UUID       `db:"entity_id" json:"entity_id"`
	PeriodYear  int             `db:"period_year" json:"period_year"`
	PeriodMonth int             `db:"period_month" json:"period_month"`
	Status      RecomputeStatus `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	LastError   string          `db:"last_error" json:"last_error"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Period returns the request's period key.
func (r *RecomputeRequest) Period() TaxPeriod {
	return TaxPeriod{Year: r.PeriodYear, Month: r.PeriodMonth}
}

// TaxAuditEntry records a tax-effect mutation.
type TaxAuditEntry struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	EntityID      uuid.UUID       `db:"entity_id" json:"entity_id"`
	TransactionID *uuid.UUID      `db:"transaction_id" json:"transaction_id,omitempty"`
	Action        string          `db:"action" json:"action"`
	Details       json.RawMessage `db:"details" json:"details"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
