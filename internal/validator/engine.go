package validator

import (
	"context"

	"taxengine/internal/domain"
)

// Report collects rule outcomes for one transaction.
type Report struct {
	TransactionRef string
	Results        []Result
}

// Failures returns the failing results of the given severity.
func (r *Report) Failures(sev Severity) []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed && res.Severity == sev {
			out = append(out, res)
		}
	}
	return out
}

// Valid reports whether no error-severity rule failed.
func (r *Report) Valid() bool {
	return len(r.Failures(SeverityError)) == 0
}

// Err returns the typed error of the first failing error-severity rule.
func (r *Report) Err() error {
	for _, res := range r.Failures(SeverityError) {
		if res.Err != nil {
			return res.Err
		}
		return &domain.DerivedValueError{Field: res.FieldPath, Value: res.ActualValue, Err: domain.ErrInvalidInput}
	}
	return nil
}

// Engine runs registered rules against transactions.
type Engine struct {
	registry *Registry
}

// NewEngine creates a new validation engine.
func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &Engine{registry: registry}
}

// Check runs every rule that applies to concern against tx.
func (e *Engine) Check(ctx context.Context, tx *domain.Transaction, concern Concern) *Report {
	report := &Report{TransactionRef: tx.Ref()}
	for _, v := range e.registry.ForConcern(concern) {
		report.Results = append(report.Results, v.Validate(ctx, tx)...)
	}
	return report
}
