package taxcalc

import (
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	"taxengine/internal/domain"
)

// ApplyCredit offsets available withholding credits against a liability.
// Negative inputs are treated as zero; the result never goes below zero and
// never consumes more credit than the liability.
func ApplyCredit(liability, credits decimal.Decimal) domain.CreditApplication {
	liability = domain.MaxZero(liability)
	credits = domain.MaxZero(credits)
	return domain.CreditApplication{
		NetLiability:   domain.RoundMoney(domain.MaxZero(liability.Sub(credits))),
		CreditConsumed: domain.RoundMoney(decimal.Min(liability, credits)),
	}
}

// NormalizeTaxID upper-cases a tax ID and drops whitespace, dashes, dots and slashes.
func NormalizeTaxID(taxID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-', '.', '/':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(taxID)))
}

// CreditIdentity derives the ledger key for a payee from its tax ID: the hex
// BLAKE2b-256 digest of the normalized ID. It is a derived index for grouping
// credits, not a secret.
func CreditIdentity(taxID string) (string, error) {
	norm := NormalizeTaxID(taxID)
	if norm == "" {
		return "", domain.ErrPayeeIdentityRequired
	}
	sum := blake2b.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:]), nil
}

// DistinctCredits totals the withholding credited to one payee key. A single
// withholding can appear twice under the key: as the payer's remittance entry
// and as the payee's own credit entry for the same sale. Every remittance
// counts; a credit entry counts only when no remittance of the same payment
// type and amount is left to pair with it.
func DistinctCredits(entries []domain.WHTCreditEntry) decimal.Decimal {
	type eventKey struct {
		paymentType domain.PaymentType
		amount      string
	}
	keyOf := func(e *domain.WHTCreditEntry) eventKey {
		return eventKey{paymentType: e.PaymentType, amount: domain.RoundMoney(e.Amount).StringFixed(2)}
	}

	unpaired := make(map[eventKey]int)
	total := decimal.Zero
	for i := range entries {
		e := &entries[i]
		if e.Direction == domain.LedgerDirectionRemittance {
			unpaired[keyOf(e)]++
			total = total.Add(e.Amount)
		}
	}
	for i := range entries {
		e := &entries[i]
		if e.Direction == domain.LedgerDirectionRemittance {
			continue
		}
		k := keyOf(e)
		if unpaired[k] > 0 {
			unpaired[k]--
			continue
		}
		total = total.Add(e.Amount)
	}
	return domain.RoundMoney(total)
}
