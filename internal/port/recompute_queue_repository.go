package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taxengine/internal/domain"
)

// RecomputeQueueRepository holds deferred (entity, period) rebuilds.
type RecomputeQueueRepository interface {
	Enqueue(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) error
	// ClaimPending also reclaims processing requests last touched before
	// staleBefore; their worker is assumed to have died.
	ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]domain.RecomputeRequest, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, maxAttempts int) error
}
