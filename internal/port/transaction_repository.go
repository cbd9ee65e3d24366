package port

import (
	"context"

	"github.com/google/uuid"

	"taxengine/internal/domain"
)

// TransactionRepository is the read-only view of the transaction store.
// Reads must observe every mutation already committed by the caller.
type TransactionRepository interface {
	GetByID(ctx context.Context, entityID, txID uuid.UUID) (*domain.Transaction, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error)
	ListYears(ctx context.Context, entityID uuid.UUID) ([]int, error)
}

// EntityRepository reads taxpayer records.
type EntityRepository interface {
	GetByID(ctx context.Context, entityID uuid.UUID) (*domain.Entity, error)
	List(ctx context.Context, offset, limit int) ([]domain.Entity, int, error)
}
