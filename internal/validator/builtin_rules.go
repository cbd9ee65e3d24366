package validator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"taxengine/internal/domain"
)

const (
	RuleAmountNonNegative = "amount.non_negative"
	RuleKindKnown         = "transaction.kind_known"
	RuleDatePresent       = "transaction.date_present"
	RuleVATNonNegative    = "vat.non_negative"
	RuleVATExemptCharge   = "vat.exempt_without_charge"
	RuleWHTNonNegative    = "wht.non_negative"
	RuleWHTWithinBase     = "wht.within_base"
	RuleWHTPayeeIdentity  = "wht.payee_identity"
)

// BuiltinValidator wraps a check function and its metadata for the registry.
type BuiltinValidator struct {
	key     string
	name    string
	concern Concern
	sev     Severity
	fn      func(context.Context, *domain.Transaction) []Result
}

func (b *BuiltinValidator) Validate(ctx context.Context, tx *domain.Transaction) []Result {
	results := b.fn(ctx, tx)
	for i := range results {
		results[i].RuleKey = b.key
		results[i].Severity = b.sev
	}
	return results
}
func (b *BuiltinValidator) RuleKey() string    { return b.key }
func (b *BuiltinValidator) RuleName() string   { return b.name }
func (b *BuiltinValidator) Concern() Concern   { return b.concern }
func (b *BuiltinValidator) Severity() Severity { return b.sev }

// AllBuiltinValidators returns every built-in transaction rule.
func AllBuiltinValidators() []*BuiltinValidator {
	return []*BuiltinValidator{
		{
			key: RuleAmountNonNegative, name: "Amount is not negative",
			concern: ConcernAll, sev: SeverityError,
			fn: nonNegative("amount", func(tx *domain.Transaction) decimal.Decimal { return tx.Amount }),
		},
		{
			key: RuleKindKnown, name: "Transaction kind is sale or purchase",
			concern: ConcernAll, sev: SeverityError,
			fn: checkKind,
		},
		{
			key: RuleDatePresent, name: "Transaction date is set",
			concern: ConcernAll, sev: SeverityError,
			fn: checkDate,
		},
		{
			key: RuleVATNonNegative, name: "VAT amount is not negative",
			concern: ConcernVAT, sev: SeverityError,
			fn: nonNegative("vat_amount", func(tx *domain.Transaction) decimal.Decimal { return tx.VATAmount }),
		},
		{
			key: RuleVATExemptCharge, name: "Exempt transaction carries no VAT",
			concern: ConcernVAT, sev: SeverityWarning,
			fn: checkExemptCharge,
		},
		{
			key: RuleWHTNonNegative, name: "Withholding amount is not negative",
			concern: ConcernWHT, sev: SeverityError,
			fn: nonNegative("wht_amount", func(tx *domain.Transaction) decimal.Decimal { return tx.WHTAmount }),
		},
		{
			key: RuleWHTWithinBase, name: "Withholding does not exceed the amount",
			concern: ConcernWHT, sev: SeverityError,
			fn: checkWithinBase,
		},
		{
			key: RuleWHTPayeeIdentity, name: "Settled purchase with withholding identifies the payee",
			concern: ConcernWHT, sev: SeverityError,
			fn: checkPayeeIdentity,
		},
	}
}

func nonNegative(field string, extract func(*domain.Transaction) decimal.Decimal) func(context.Context, *domain.Transaction) []Result {
	return func(_ context.Context, tx *domain.Transaction) []Result {
		val := extract(tx)
		r := Result{
			Passed:        !val.IsNegative(),
			FieldPath:     field,
			ExpectedValue: ">= 0",
			ActualValue:   val.String(),
		}
		if r.Passed {
			r.Message = fmt.Sprintf("%s is not negative", field)
		} else {
			r.Message = fmt.Sprintf("%s is negative: %s", field, val)
			r.Err = &domain.DerivedValueError{Field: field, Value: val.String(), Err: domain.ErrNegativeAmount}
		}
		return []Result{r}
	}
}

func checkKind(_ context.Context, tx *domain.Transaction) []Result {
	ok := tx.IsSale() || tx.IsPurchase()
	r := Result{
		Passed:        ok,
		FieldPath:     "kind",
		ExpectedValue: "sale or purchase",
		ActualValue:   string(tx.Kind),
		Message:       "transaction kind is known",
	}
	if !ok {
		r.Message = fmt.Sprintf("unknown transaction kind %q", tx.Kind)
		r.Err = fmt.Errorf("kind %q: %w", tx.Kind, domain.ErrInvalidInput)
	}
	return []Result{r}
}

func checkDate(_ context.Context, tx *domain.Transaction) []Result {
	ok := !tx.Date.IsZero()
	r := Result{
		Passed:        ok,
		FieldPath:     "date",
		ExpectedValue: "non-zero date",
		Message:       "transaction date is set",
	}
	if ok {
		r.ActualValue = tx.Date.Format("2006-01-02")
	} else {
		r.Message = "transaction date is missing"
		r.Err = fmt.Errorf("date missing: %w", domain.ErrInvalidInput)
	}
	return []Result{r}
}

func checkExemptCharge(_ context.Context, tx *domain.Transaction) []Result {
	ok := !tx.IsVATExempt() || !tx.VATAmount.IsPositive()
	r := Result{
		Passed:        ok,
		FieldPath:     "vat_amount",
		ExpectedValue: "0 when exempt",
		ActualValue:   tx.VATAmount.String(),
		Message:       "exempt transaction carries no VAT",
	}
	if !ok {
		r.Message = fmt.Sprintf("exempt transaction carries VAT %s; it is ignored", tx.VATAmount)
	}
	return []Result{r}
}

func checkWithinBase(_ context.Context, tx *domain.Transaction) []Result {
	ok := tx.WHTAmount.LessThanOrEqual(domain.MaxZero(tx.Amount))
	r := Result{
		Passed:        ok,
		FieldPath:     "wht_amount",
		ExpectedValue: "<= " + tx.Amount.String(),
		ActualValue:   tx.WHTAmount.String(),
		Message:       "withholding is within the amount",
	}
	if !ok {
		r.Message = fmt.Sprintf("withholding %s exceeds amount %s", tx.WHTAmount, tx.Amount)
		r.Err = &domain.DerivedValueError{Field: "wht_amount", Value: tx.WHTAmount.String(), Err: domain.ErrInvalidWithholding}
	}
	return []Result{r}
}

func checkPayeeIdentity(_ context.Context, tx *domain.Transaction) []Result {
	if !tx.IsPurchase() || !tx.IsSettled() || !tx.HasWithholding() {
		return nil
	}
	r := Result{
		Passed:        tx.Payee.HasIdentity(),
		FieldPath:     "payee",
		ExpectedValue: "tax id and tier",
		Message:       "payee is identified",
	}
	if tx.Payee != nil {
		r.ActualValue = fmt.Sprintf("tax_id=%q tier=%q", tx.Payee.TaxID, tx.Payee.Tier)
	}
	if !r.Passed {
		reason := "payee is missing"
		if tx.Payee != nil {
			reason = "payee tax id or tier is missing"
		}
		r.Message = reason
		r.Err = &domain.IdentityError{TransactionRef: tx.Ref(), Reason: reason}
	}
	return []Result{r}
}
