package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taxengine/internal/domain"
	"taxengine/internal/port"
)

type whtLedgerRepo struct {
	db *sqlx.DB
}

// NewWHTLedgerRepo creates a new PostgreSQL-backed WHTLedgerRepository.
func NewWHTLedgerRepo(db *sqlx.DB) port.WHTLedgerRepository {
	return &whtLedgerRepo{db: db}
}

func (r *whtLedgerRepo) Create(ctx context.Context, entry *domain.WHTCreditEntry) error {
	query := `
		INSERT INTO wht_ledger_entries (
			id, transaction_id, entity_id, concern, direction,
			payee_key, payee_name, payee_tax_id, payment_type, tax_year,
			base_amount, amount, transaction_date, created_at
		) VALUES (
			:id, :transaction_id, :entity_id, :concern, :direction,
			:payee_key, :payee_name, :payee_tax_id, :payment_type, :tax_year,
			:base_amount, :amount, :transaction_date, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("whtLedgerRepo.Create: %w", err)
	}
	return nil
}

func (r *whtLedgerRepo) DeleteByTransaction(ctx context.Context, txID uuid.UUID) ([]domain.WHTCreditEntry, error) {
	var removed []domain.WHTCreditEntry
	err := r.db.SelectContext(ctx, &removed,
		"DELETE FROM wht_ledger_entries WHERE transaction_id = $1 RETURNING *", txID)
	if err != nil {
		return nil, fmt.Errorf("whtLedgerRepo.DeleteByTransaction: %w", err)
	}
	return removed, nil
}

func (r *whtLedgerRepo) ListByPayee(ctx context.Context, payeeKey string, taxYear int) ([]domain.WHTCreditEntry, error) {
	var entries []domain.WHTCreditEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM wht_ledger_entries
		 WHERE payee_key = $1 AND tax_year = $2
		 ORDER BY transaction_date, id`,
		payeeKey, taxYear)
	if err != nil {
		return nil, fmt.Errorf("whtLedgerRepo.ListByPayee: %w", err)
	}
	return entries, nil
}

func (r *whtLedgerRepo) ListByEntity(ctx context.Context, entityID uuid.UUID, taxYear int) ([]domain.WHTCreditEntry, error) {
	var entries []domain.WHTCreditEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM wht_ledger_entries
		 WHERE entity_id = $1 AND tax_year = $2
		 ORDER BY transaction_date, id`,
		entityID, taxYear)
	if err != nil {
		return nil, fmt.Errorf("whtLedgerRepo.ListByEntity: %w", err)
	}
	return entries, nil
}
