package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taxengine/internal/domain"
	"taxengine/internal/port"
)

type recomputeQueueRepo struct {
	db *sqlx.DB
}

// NewRecomputeQueueRepo creates a new PostgreSQL-backed RecomputeQueueRepository.
func NewRecomputeQueueRepo(db *sqlx.DB) port.RecomputeQueueRepository {
	return &recomputeQueueRepo{db: db}
}

// Enqueue is a no-op when the same period is already pending.
func (r *recomputeQueueRepo) Enqueue(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recompute_queue (id, entity_id, period_year, period_month, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (entity_id, period_year, period_month) WHERE status = 'pending' DO NOTHING`,
		uuid.New(), entityID, period.Year, period.Month, domain.RecomputeStatusPending)
	if err != nil {
		return fmt.Errorf("recomputeQueueRepo.Enqueue: %w", err)
	}
	return nil
}

// ClaimPending moves up to limit pending requests to processing, oldest first,
// together with processing requests not touched since staleBefore. Rows locked
// by another worker are skipped.
func (r *recomputeQueueRepo) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]domain.RecomputeRequest, error) {
	var claimed []domain.RecomputeRequest
	err := r.db.SelectContext(ctx, &claimed,
		`UPDATE recompute_queue
		 SET status = $1, attempts = attempts + 1, updated_at = NOW()
		 WHERE id IN (
			SELECT id FROM recompute_queue
			WHERE status = $2 OR (status = $1 AND updated_at < $4)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING *`,
		domain.RecomputeStatusProcessing, domain.RecomputeStatusPending, limit, staleBefore.UTC())
	if err != nil {
		return nil, fmt.Errorf("recomputeQueueRepo.ClaimPending: %w", err)
	}
	return claimed, nil
}

func (r *recomputeQueueRepo) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE recompute_queue SET status = $1, last_error = '', updated_at = NOW() WHERE id = $2`,
		domain.RecomputeStatusDone, id)
	if err != nil {
		return fmt.Errorf("recomputeQueueRepo.MarkDone: %w", err)
	}
	return nil
}

// MarkFailed returns the request to pending until it has been attempted
// maxAttempts times.
func (r *recomputeQueueRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE recompute_queue
		 SET status = CASE WHEN attempts < $1 THEN $2 ELSE $3 END,
			 last_error = $4,
			 updated_at = NOW()
		 WHERE id = $5`,
		maxAttempts, domain.RecomputeStatusPending, domain.RecomputeStatusFailed, lastErr, id)
	if err != nil {
		return fmt.Errorf("recomputeQueueRepo.MarkFailed: %w", err)
	}
	return nil
}
