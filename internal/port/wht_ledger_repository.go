package port

import (
	"context"

	"github.com/google/uuid"

	"taxengine/internal/domain"
)

// WHTLedgerRepository persists withholding ledger entries. Entries are only
// ever created or deleted.
type WHTLedgerRepository interface {
	Create(ctx context.Context, entry *domain.WHTCreditEntry) error
	DeleteByTransaction(ctx context.Context, txID uuid.UUID) ([]domain.WHTCreditEntry, error)
	ListByPayee(ctx context.Context, payeeKey string, taxYear int) ([]domain.WHTCreditEntry, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID, taxYear int) ([]domain.WHTCreditEntry, error)
}
