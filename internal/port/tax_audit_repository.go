package port

import (
	"context"

	"taxengine/internal/domain"
)

// TaxAuditRepository defines the contract for tax-effect audit persistence.
type TaxAuditRepository interface {
	Create(ctx context.Context, entry *domain.TaxAuditEntry) error
}
