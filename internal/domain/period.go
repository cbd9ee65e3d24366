package domain

import (
	"fmt"
	"time"
)

// TaxPeriod is a (year, month) key. Month 0 denotes the whole year.
type TaxPeriod struct {
	Year  int `db:"period_year" json:"year"`
	Month int `db:"period_month" json:"month"`
}

// MonthlyPeriod returns the monthly period containing t.
func MonthlyPeriod(t time.Time) TaxPeriod {
	return TaxPeriod{Year: t.Year(), Month: int(t.Month())}
}

// AnnualPeriod returns the annual period for year.
func AnnualPeriod(year int) TaxPeriod {
	return TaxPeriod{Year: year}
}

// IsAnnual reports whether p covers a whole year.
func (p TaxPeriod) IsAnnual() bool {
	return p.Month == 0
}

// Annual returns the annual period enclosing p.
func (p TaxPeriod) Annual() TaxPeriod {
	return TaxPeriod{Year: p.Year}
}

// Validate checks the month range.
func (p TaxPeriod) Validate() error {
	if p.Month < 0 || p.Month > 12 {
		return fmt.Errorf("period %s: month out of range: %w", p, ErrInvalidInput)
	}
	if p.Year <= 0 {
		return fmt.Errorf("period %s: year out of range: %w", p, ErrInvalidInput)
	}
	return nil
}

// Range returns the half-open [start, end) interval of p in UTC.
func (p TaxPeriod) Range() (time.Time, time.Time) {
	if p.IsAnnual() {
		start := time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls inside p.
func (p TaxPeriod) Contains(t time.Time) bool {
	start, end := p.Range()
	t = t.UTC()
	return !t.Before(start) && t.Before(end)
}

func (p TaxPeriod) String() string {
	if p.IsAnnual() {
		return fmt.Sprintf("%04d", p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
