package port

import (
	"context"

	"github.com/google/uuid"

	"taxengine/internal/domain"
)

// VATSummaryRepository manages the materialized vat_summaries table.
type VATSummaryRepository interface {
	Upsert(ctx context.Context, summary *domain.VATSummary) error
	Get(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.VATSummary, error)
	ListByYear(ctx context.Context, entityID uuid.UUID, year int) ([]domain.VATSummary, error)
}

// WHTSummaryRepository manages the materialized wht_summaries table.
type WHTSummaryRepository interface {
	Upsert(ctx context.Context, summary *domain.WHTSummary) error
	Get(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.WHTSummary, error)
}
