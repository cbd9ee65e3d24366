package domain

// EntityKind distinguishes the two kinds of taxpayer the engine serves.
type EntityKind string

const (
	EntityKindIncorporated   EntityKind = "incorporated"
	EntityKindSoleProprietor EntityKind = "sole_proprietor"
)

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	return k == EntityKindIncorporated || k == EntityKindSoleProprietor
}

// UsesBrackets reports whether income tax for this kind is a bracket walk
// rather than a flat tier rate.
func (k EntityKind) UsesBrackets() bool {
	return k == EntityKindSoleProprietor
}

// TransactionKind is the tag of the Transaction union.
type TransactionKind string

const (
	TransactionKindSale     TransactionKind = "sale"
	TransactionKindPurchase TransactionKind = "purchase"
)

// TransactionStatus represents the lifecycle of a transaction.
type TransactionStatus string

const (
	TransactionStatusDraft     TransactionStatus = "draft"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSettled   TransactionStatus = "settled"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// PaymentType tags a payment for withholding purposes.
type PaymentType string

const (
	PaymentTypeNone              PaymentType = ""
	PaymentTypeDividend          PaymentType = "dividend"
	PaymentTypeInterest          PaymentType = "interest"
	PaymentTypeRent              PaymentType = "rent"
	PaymentTypeRoyalty           PaymentType = "royalty"
	PaymentTypeCommission        PaymentType = "commission"
	PaymentTypeProfessional      PaymentType = "professional_service"
	PaymentTypeConsultancy       PaymentType = "consultancy"
	PaymentTypeManagementService PaymentType = "management_service"
	PaymentTypeTechnicalService  PaymentType = "technical_service"
	PaymentTypeConstruction      PaymentType = "construction"
	PaymentTypeContractSupply    PaymentType = "contract_supply"
	PaymentTypeDirectorFee       PaymentType = "director_fee"
)

// PayeeTier records what the entity knows about a payee's size and legal form.
type PayeeTier string

const (
	PayeeTierCorporate       PayeeTier = "corporate"
	PayeeTierSmallCorporate  PayeeTier = "small_corporate"
	PayeeTierIndividual      PayeeTier = "individual"
	PayeeTierSmallIndividual PayeeTier = "small_individual"
)

// Valid reports whether t is a known payee tier.
func (t PayeeTier) Valid() bool {
	switch t {
	case PayeeTierCorporate, PayeeTierSmallCorporate, PayeeTierIndividual, PayeeTierSmallIndividual:
		return true
	}
	return false
}

// Kind maps a payee tier to the entity kind whose withholding rates apply.
func (t PayeeTier) Kind() EntityKind {
	if t == PayeeTierIndividual || t == PayeeTierSmallIndividual {
		return EntityKindSoleProprietor
	}
	return EntityKindIncorporated
}

// IsSmall reports whether the payee declared itself below the withholding exemption line.
func (t PayeeTier) IsSmall() bool {
	return t == PayeeTierSmallCorporate || t == PayeeTierSmallIndividual
}

// TaxConcern selects which threshold table a classification uses.
type TaxConcern string

const (
	ConcernConsumptionTaxEligibility TaxConcern = "consumption_tax_eligibility"
	ConcernWithholdingExemption      TaxConcern = "withholding_exemption"
	ConcernIncomeTaxTier             TaxConcern = "income_tax_tier"
)

// Tier is the outcome of classifying an entity for one concern.
// Income tax tiers take their names from the rate table.
type Tier string

const (
	TierEligible   Tier = "eligible"
	TierIneligible Tier = "ineligible"
	TierExempt     Tier = "exempt"
	TierNotExempt  Tier = "not_exempt"
)

// TurnoverBasis selects revenue recognition for turnover.
type TurnoverBasis string

const (
	// BasisAccrual recognises revenue on issuance; used for thresholds.
	BasisAccrual TurnoverBasis = "accrual"
	// BasisCash recognises revenue on settlement; used for liability.
	BasisCash TurnoverBasis = "cash"
)

// VATStatus classifies the net position of a VAT summary.
type VATStatus string

const (
	VATStatusPayable    VATStatus = "payable"
	VATStatusRefundable VATStatus = "refundable"
	VATStatusZero       VATStatus = "zero"
)

// LedgerDirection says which side of a withholding the entity sits on.
type LedgerDirection string

const (
	// LedgerDirectionCredit: a customer withheld on the entity; the entity holds the credit.
	LedgerDirectionCredit LedgerDirection = "credit"
	// LedgerDirectionRemittance: the entity withheld on a supplier and owes remittance.
	LedgerDirectionRemittance LedgerDirection = "remittance"
)

// LedgerConcernWHT is the only concern that currently produces ledger entries.
const LedgerConcernWHT = "wht"

// RecomputeStatus represents the lifecycle of a queued recompute request.
type RecomputeStatus string

const (
	RecomputeStatusPending    RecomputeStatus = "pending"
	RecomputeStatusProcessing RecomputeStatus = "processing"
	RecomputeStatusDone       RecomputeStatus = "done"
	RecomputeStatusFailed     RecomputeStatus = "failed"
)

// AuditAction identifies a tax-effect mutation recorded in the audit log.
type AuditAction string

const (
	AuditLedgerCreated     AuditAction = "ledger.created"
	AuditLedgerDeleted     AuditAction = "ledger.deleted"
	AuditLedgerRejected    AuditAction = "ledger.rejected"
	AuditSummaryRecomputed AuditAction = "summary.recomputed"
	AuditRecomputeEnqueued AuditAction = "summary.enqueued"
)
