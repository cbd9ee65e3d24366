package domain

import "time"

// TransactionFilter selects transactions for one entity. From is inclusive,
// To is exclusive; zero times leave that side open. Empty Statuses and Kind
// match everything.
type TransactionFilter struct {
	From     time.Time
	To       time.Time
	Statuses []TransactionStatus
	Kind     TransactionKind
}

// PeriodFilter returns a filter covering p.
func PeriodFilter(p TaxPeriod, statuses ...TransactionStatus) TransactionFilter {
	from, to := p.Range()
	return TransactionFilter{From: from, To: to, Statuses: statuses}
}

// Matches applies the filter in memory.
func (f TransactionFilter) Matches(tx *Transaction) bool {
	d := tx.Date.UTC()
	if !f.From.IsZero() && d.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !d.Before(f.To) {
		return false
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if tx.Status == s {
			return true
		}
	}
	return false
}
