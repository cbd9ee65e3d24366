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

const vatSummaryColumns = `entity_id, period_year, period_month,
	output_vat, input_vat, claimable_input_vat, net_vat, status, input_suppressed,
	annual_turnover, exempt, sales_count, purchase_count, skipped_count`

type vatSummaryRepo struct {
	db *sqlx.DB
}

// NewVATSummaryRepo creates a new PostgreSQL-backed VATSummaryRepository.
func NewVATSummaryRepo(db *sqlx.DB) port.VATSummaryRepository {
	return &vatSummaryRepo{db: db}
}

func (r *vatSummaryRepo) Upsert(ctx context.Context, summary *domain.VATSummary) error {
	query := `
		INSERT INTO vat_summaries (
			entity_id, period_year, period_month,
			output_vat, input_vat, claimable_input_vat, net_vat, status, input_suppressed,
			annual_turnover, exempt, sales_count, purchase_count, skipped_count,
			created_at, updated_at
		) VALUES (
			:entity_id, :period_year, :period_month,
			:output_vat, :input_vat, :claimable_input_vat, :net_vat, :status, :input_suppressed,
			:annual_turnover, :exempt, :sales_count, :purchase_count, :skipped_count,
			NOW(), NOW()
		)
		ON CONFLICT (entity_id, period_year, period_month) DO UPDATE SET
			output_vat = EXCLUDED.output_vat,
			input_vat = EXCLUDED.input_vat,
			claimable_input_vat = EXCLUDED.claimable_input_vat,
			net_vat = EXCLUDED.net_vat,
			status = EXCLUDED.status,
			input_suppressed = EXCLUDED.input_suppressed,
			annual_turnover = EXCLUDED.annual_turnover,
			exempt = EXCLUDED.exempt,
			sales_count = EXCLUDED.sales_count,
			purchase_count = EXCLUDED.purchase_count,
			skipped_count = EXCLUDED.skipped_count,
			updated_at = NOW()`

	if _, err := r.db.NamedExecContext(ctx, query, summary); err != nil {
		return fmt.Errorf("vatSummaryRepo.Upsert: %w", err)
	}
	return nil
}

func (r *vatSummaryRepo) Get(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.VATSummary, error) {
	var summary domain.VATSummary
	err := r.db.GetContext(ctx, &summary,
		"SELECT "+vatSummaryColumns+` FROM vat_summaries
		 WHERE entity_id = $1 AND period_year = $2 AND period_month = $3`,
		entityID, period.Year, period.Month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("vatSummaryRepo.Get: %w", err)
	}
	return &summary, nil
}

func (r *vatSummaryRepo) ListByYear(ctx context.Context, entityID uuid.UUID, year int) ([]domain.VATSummary, error) {
	var summaries []domain.VATSummary
	err := r.db.SelectContext(ctx, &summaries,
		"SELECT "+vatSummaryColumns+` FROM vat_summaries
		 WHERE entity_id = $1 AND period_year = $2
		 ORDER BY period_month`,
		entityID, year)
	if err != nil {
		return nil, fmt.Errorf("vatSummaryRepo.ListByYear: %w", err)
	}
	return summaries, nil
}
