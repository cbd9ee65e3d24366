package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound              = errors.New("resource not found")
	ErrUnsupportedTaxYear    = errors.New("unsupported tax year")
	ErrMissingRate           = errors.New("missing rate or threshold")
	ErrMalformedBrackets     = errors.New("malformed bracket table")
	ErrPayeeIdentityRequired = errors.New("payee tax id and tier are required for withholding")
	ErrInvalidWithholding    = errors.New("explicit withholding selection is invalid")
	ErrInvalidInput          = errors.New("invalid input")
	ErrNegativeAmount        = errors.New("amount must not be negative")
)

// ErrorKind groups errors so callers can decide whether to retry or fix input.
type ErrorKind string

const (
	KindUnknown           ErrorKind = "unknown"
	KindConfiguration     ErrorKind = "configuration"
	KindIdentity          ErrorKind = "identity"
	KindAssertionConflict ErrorKind = "assertion_conflict"
	KindDerivedValue      ErrorKind = "derived_value"
	KindNotFound          ErrorKind = "not_found"
)

// ConfigError reports a missing or malformed rate table entry. It is never defaulted.
type ConfigError struct {
	Year int
	Key  string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("tax configuration for %d: %v", e.Year, e.Err)
	}
	return fmt.Sprintf("tax configuration for %d (%s): %v", e.Year, e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError.
func NewConfigError(year int, key string, err error) *ConfigError {
	return &ConfigError{Year: year, Key: key, Err: err}
}

// IdentityError reports a withholding that cannot be attributed to a payee.
type IdentityError struct {
	TransactionRef string
	Reason         string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("transaction %s: %s: %v", e.TransactionRef, e.Reason, ErrPayeeIdentityRequired)
}

func (e *IdentityError) Unwrap() error {
	return ErrPayeeIdentityRequired
}

// AssertionConflictError reports an explicit user choice that the classification forbids.
type AssertionConflictError struct {
	Concern   TaxConcern
	Turnover  decimal.Decimal
	Threshold decimal.Decimal
	Message   string
}

func (e *AssertionConflictError) Error() string {
	return e.Message
}

// NewVATChargeConflict builds the message shown when an unregistered entity
// below the consumption-tax threshold tries to charge VAT.
func NewVATChargeConflict(turnover, threshold decimal.Decimal) *AssertionConflictError {
	return &AssertionConflictError{
		Concern:   ConcernConsumptionTaxEligibility,
		Turnover:  turnover,
		Threshold: threshold,
		Message: fmt.Sprintf(
			"cannot charge VAT: annual turnover %s is below the %s consumption-tax threshold and no VAT registration number is on file; mark the transaction exempt or register for VAT",
			turnover.StringFixed(2), threshold.StringFixed(2)),
	}
}

// DerivedValueError reports an impossible computed value (negative or non-numeric).
type DerivedValueError struct {
	Field string
	Value string
	Err   error
}

func (e *DerivedValueError) Error() string {
	return fmt.Sprintf("derived value %s=%s: %v", e.Field, e.Value, e.Err)
}

func (e *DerivedValueError) Unwrap() error {
	return e.Err
}

// KindOf classifies err for callers.
func KindOf(err error) ErrorKind {
	var cfgErr *ConfigError
	var idErr *IdentityError
	var conflict *AssertionConflictError
	var derived *DerivedValueError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &conflict):
		return KindAssertionConflict
	case errors.As(err, &cfgErr), errors.Is(err, ErrUnsupportedTaxYear), errors.Is(err, ErrMalformedBrackets):
		return KindConfiguration
	case errors.As(err, &idErr), errors.Is(err, ErrPayeeIdentityRequired):
		return KindIdentity
	case errors.As(err, &derived):
		return KindDerivedValue
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindUnknown
}
