package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"taxengine/internal/domain"
	"taxengine/internal/port"
)

type taxAuditRepo struct {
	db *sqlx.DB
}

// NewTaxAuditRepo creates a new PostgreSQL-backed TaxAuditRepository.
func NewTaxAuditRepo(db *sqlx.DB) port.TaxAuditRepository {
	return &taxAuditRepo{db: db}
}

func (r *taxAuditRepo) Create(ctx context.Context, entry *domain.TaxAuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tax_audit_log (id, entity_id, transaction_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.EntityID, entry.TransactionID, entry.Action, []byte(entry.Details), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("taxAuditRepo.Create: %w", err)
	}
	return nil
}
