package validator

import (
	"context"

	"taxengine/internal/domain"
)

// Concern scopes a rule to the aggregation that relies on it.
type Concern string

const (
	ConcernAll Concern = "all"
	ConcernVAT Concern = "vat"
	ConcernWHT Concern = "wht"
)

// Severity decides whether a failing rule excludes the transaction.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Result is the outcome of one rule against one transaction.
type Result struct {
	RuleKey       string
	Passed        bool
	FieldPath     string
	ExpectedValue string
	ActualValue   string
	Message       string
	Severity      Severity
	// Err is the typed error a failing error-severity rule maps to.
	Err error
}

// Validator is the interface for a single built-in tax-integrity rule.
type Validator interface {
	Validate(ctx context.Context, tx *domain.Transaction) []Result
	RuleKey() string
	RuleName() string
	Concern() Concern
	Severity() Severity
}
