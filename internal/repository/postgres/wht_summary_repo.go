package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taxengine/internal/domain"
	"taxengine/internal/port"
)

type whtSummaryRepo struct {
	db *sqlx.DB
}

// NewWHTSummaryRepo creates a new PostgreSQL-backed WHTSummaryRepository.
func NewWHTSummaryRepo(db *sqlx.DB) port.WHTSummaryRepository {
	return &whtSummaryRepo{db: db}
}

func (r *whtSummaryRepo) Upsert(ctx context.Context, summary *domain.WHTSummary) error {
	query := `
		INSERT INTO wht_summaries (
			entity_id, period_year, period_month,
			credits_received, withheld_remitted, credit_entries, remittance_entries, skipped_count,
			created_at, updated_at
		) VALUES (
			:entity_id, :period_year, :period_month,
			:credits_received, :withheld_remitted, :credit_entries, :remittance_entries, :skipped_count,
			NOW(), NOW()
		)
		ON CONFLICT (entity_id, period_year, period_month) DO UPDATE SET
			credits_received = EXCLUDED.credits_received,
			withheld_remitted = EXCLUDED.withheld_remitted,
			credit_entries = EXCLUDED.credit_entries,
			remittance_entries = EXCLUDED.remittance_entries,
			skipped_count = EXCLUDED.skipped_count,
			updated_at = NOW()`

	if _, err := r.db.NamedExecContext(ctx, query, summary); err != nil {
		return fmt.Errorf("whtSummaryRepo.Upsert: %w", err)
	}
	return nil
}

func (r *whtSummaryRepo) Get(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.WHTSummary, error) {
	var summary domain.WHTSummary
	err := r.db.GetContext(ctx, &summary,
		`SELECT entity_id, period_year, period_month,
			credits_received, withheld_remitted, credit_entries, remittance_entries, skipped_count
		 FROM wht_summaries
		 WHERE entity_id = $1 AND period_year = $2 AND period_month = $3`,
		entityID, period.Year, period.Month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("whtSummaryRepo.Get: %w", err)
	}
	return &summary, nil
}
