package ratetable

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"taxengine/internal/domain"
)

// Bracket is a half-open [Min, Max) band of a graduated table. A zero Max marks
// the unbounded top band.
type Bracket struct {
	Min   decimal.Decimal `mapstructure:"min" json:"min"`
	Max   decimal.Decimal `mapstructure:"max" json:"max"`
	Rate  decimal.Decimal `mapstructure:"rate" json:"rate"`
	Label string          `mapstructure:"label" json:"label"`
}

// Unbounded reports whether b is the top band.
func (b Bracket) Unbounded() bool {
	return b.Max.IsZero()
}

// IncomeTier maps a turnover band to a flat corporate rate. A zero
// MaxTurnover marks the last, unbounded tier.
type IncomeTier struct {
	Name        string          `mapstructure:"name" json:"name"`
	MaxTurnover decimal.Decimal `mapstructure:"max_turnover" json:"max_turnover"`
	Rate        decimal.Decimal `mapstructure:"rate" json:"rate"`
}

// EntityRules holds the thresholds and rates that depend on entity kind. Each
// concern keeps its own threshold even when the values coincide.
type EntityRules struct {
	ConsumptionTaxThreshold       decimal.Decimal                        `mapstructure:"consumption_tax_threshold"`
	WithholdingExemptionThreshold decimal.Decimal                        `mapstructure:"withholding_exemption_threshold"`
	IncomeTiers                   []IncomeTier                           `mapstructure:"income_tiers"`
	WithholdingRates              map[domain.PaymentType]decimal.Decimal `mapstructure:"withholding_rates"`
}

// WithholdingRules configures the qualifying-service test.
type WithholdingRules struct {
	// ServiceTypes are the payment types subject to the qualifying-service test.
	ServiceTypes []domain.PaymentType `mapstructure:"service_types"`
	// ServicePaymentCeiling is the largest base still treated as a qualifying
	// small service payment. Zero disables the test.
	ServicePaymentCeiling decimal.Decimal `mapstructure:"service_payment_ceiling"`
}

// Relief is the consolidated relief allowance on personal income.
type Relief struct {
	Enabled      bool            `mapstructure:"enabled"`
	FixedFloor   decimal.Decimal `mapstructure:"fixed_floor"`
	FloorPercent decimal.Decimal `mapstructure:"floor_percent"`
	GrossPercent decimal.Decimal `mapstructure:"gross_percent"`
}

// PersonalIncome configures the bracket walk.
type PersonalIncome struct {
	Brackets []Bracket `mapstructure:"brackets"`
	Relief   Relief    `mapstructure:"relief"`
}

// Deadlines are filing due dates expressed relative to a period's end.
type Deadlines struct {
	VATDueDay             int `mapstructure:"vat_due_day"`
	WHTDueDay             int `mapstructure:"wht_due_day"`
	CorporateReturnMonths int `mapstructure:"corporate_return_months"`
	PersonalReturnMonths  int `mapstructure:"personal_return_months"`
}

// YearTable is every constant that applies to one tax year.
type YearTable struct {
	Year           int                                `mapstructure:"year"`
	VATRate        decimal.Decimal                    `mapstructure:"vat_rate"`
	Entities       map[domain.EntityKind]*EntityRules `mapstructure:"entities"`
	Withholding    WithholdingRules                   `mapstructure:"withholding"`
	PersonalIncome PersonalIncome                     `mapstructure:"personal_income"`
	Deadlines      Deadlines                          `mapstructure:"deadlines"`
}

// Rules returns the rules for an entity kind.
func (y *YearTable) Rules(kind domain.EntityKind) (*EntityRules, error) {
	r, ok := y.Entities[kind]
	if !ok || r == nil {
		return nil, domain.NewConfigError(y.Year, "entities."+string(kind), domain.ErrMissingRate)
	}
	return r, nil
}

// WithholdingRate returns the rate for a payment type when the beneficiary is of the given kind.
func (y *YearTable) WithholdingRate(pt domain.PaymentType, beneficiary domain.EntityKind) (decimal.Decimal, error) {
	r, err := y.Rules(beneficiary)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := r.WithholdingRates[pt]
	if !ok {
		return decimal.Zero, domain.NewConfigError(y.Year,
			fmt.Sprintf("entities.%s.withholding_rates.%s", beneficiary, pt), domain.ErrMissingRate)
	}
	return rate, nil
}

// IsServiceType reports whether pt is subject to the qualifying-service test.
func (y *YearTable) IsServiceType(pt domain.PaymentType) bool {
	for _, s := range y.Withholding.ServiceTypes {
		if s == pt {
			return true
		}
	}
	return false
}

// IncomeTierFor returns the first tier whose ceiling covers turnover.
func (y *YearTable) IncomeTierFor(kind domain.EntityKind, turnover decimal.Decimal) (IncomeTier, error) {
	r, err := y.Rules(kind)
	if err != nil {
		return IncomeTier{}, err
	}
	for _, tier := range r.IncomeTiers {
		if tier.MaxTurnover.IsZero() || turnover.LessThanOrEqual(tier.MaxTurnover) {
			return tier, nil
		}
	}
	return IncomeTier{}, domain.NewConfigError(y.Year, "entities."+string(kind)+".income_tiers", domain.ErrMissingRate)
}

// IncomeTierNamed looks a tier up by name.
func (y *YearTable) IncomeTierNamed(kind domain.EntityKind, name string) (IncomeTier, error) {
	r, err := y.Rules(kind)
	if err != nil {
		return IncomeTier{}, err
	}
	for _, tier := range r.IncomeTiers {
		if tier.Name == name {
			return tier, nil
		}
	}
	return IncomeTier{}, domain.NewConfigError(y.Year, "entities."+string(kind)+".income_tiers."+name, domain.ErrMissingRate)
}

// FilingDeadlines are the due dates derived for one period.
type FilingDeadlines struct {
	Period             domain.TaxPeriod `json:"period"`
	VATDue             time.Time        `json:"vat_due"`
	WHTDue             time.Time        `json:"wht_due"`
	CorporateReturnDue time.Time        `json:"corporate_return_due"`
	PersonalReturnDue  time.Time        `json:"personal_return_due"`
}

// Table is the full set of year tables. It is immutable after construction.
type Table struct {
	years   map[int]*YearTable
	minYear int
}

// New validates every year table and builds a Table. Years below minYear are rejected.
func New(minYear int, years ...*YearTable) (*Table, error) {
	t := &Table{years: make(map[int]*YearTable, len(years)), minYear: minYear}
	for _, y := range years {
		if y == nil {
			continue
		}
		if y.Year < minYear {
			return nil, domain.NewConfigError(y.Year, "year", fmt.Errorf("below minimum supported year %d: %w", minYear, domain.ErrUnsupportedTaxYear))
		}
		if _, dup := t.years[y.Year]; dup {
			return nil, domain.NewConfigError(y.Year, "year", fmt.Errorf("duplicate year table: %w", domain.ErrInvalidInput))
		}
		if err := y.Validate(); err != nil {
			return nil, err
		}
		t.years[y.Year] = y
	}
	if len(t.years) == 0 {
		return nil, domain.NewConfigError(minYear, "years", domain.ErrMissingRate)
	}
	return t, nil
}

// MustNew is New that panics. It is meant for tables compiled into the binary.
func MustNew(minYear int, years ...*YearTable) *Table {
	t, err := New(minYear, years...)
	if err != nil {
		panic(fmt.Sprintf("ratetable: invalid built-in table: %v", err))
	}
	return t
}

// ForYear returns the table for year. Years below the floor or without a
// table are configuration errors; nothing is defaulted.
func (t *Table) ForYear(year int) (*YearTable, error) {
	if year < t.minYear {
		return nil, domain.NewConfigError(year, "year", fmt.Errorf("below minimum supported year %d: %w", t.minYear, domain.ErrUnsupportedTaxYear))
	}
	y, ok := t.years[year]
	if !ok {
		return nil, domain.NewConfigError(year, "year", domain.ErrUnsupportedTaxYear)
	}
	return y, nil
}

// MinYear returns the earliest supported tax year.
func (t *Table) MinYear() int {
	return t.minYear
}

// Years returns the configured years in ascending order.
func (t *Table) Years() []int {
	out := make([]int, 0, len(t.years))
	for y := range t.years {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// FilingDeadlines derives the due dates for p. VAT and WHT fall due on the
// configured day of the month after the period ends; annual returns fall due
// the configured number of months after the tax year ends.
func (t *Table) FilingDeadlines(p domain.TaxPeriod) (FilingDeadlines, error) {
	if err := p.Validate(); err != nil {
		return FilingDeadlines{}, err
	}
	y, err := t.ForYear(p.Year)
	if err != nil {
		return FilingDeadlines{}, err
	}
	_, end := p.Range()
	yearEnd := time.Date(p.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	d := y.Deadlines
	return FilingDeadlines{
		Period:             p,
		VATDue:             end.AddDate(0, 0, d.VATDueDay-1),
		WHTDue:             end.AddDate(0, 0, d.WHTDueDay-1),
		CorporateReturnDue: yearEnd.AddDate(0, d.CorporateReturnMonths, 0).AddDate(0, 0, -1),
		PersonalReturnDue:  yearEnd.AddDate(0, d.PersonalReturnMonths, 0).AddDate(0, 0, -1),
	}, nil
}
