package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"taxengine/internal/domain"
	"taxengine/internal/port"
)

const transactionColumns = `id, entity_id, kind, status, transaction_date, amount, tax_exclusive,
	vat_exempt, vat_exempt_derived, vat_amount, deductible, wht_payment_type, wht_explicit, wht_amount,
	payee_name, payee_tax_id, payee_tier, created_at, updated_at`

// transactionRow flattens the payee and keeps vat_exempt nullable.
type transactionRow struct {
	ID             uuid.UUID       `db:"id"`
	EntityID       uuid.UUID       `db:"entity_id"`
	Kind           string          `db:"kind"`
	Status         string          `db:"status"`
	Date           time.Time       `db:"transaction_date"`
	Amount         decimal.Decimal `db:"amount"`
	TaxExclusive   bool            `db:"tax_exclusive"`
	VATExempt      sql.NullBool    `db:"vat_exempt"`
	VATDerived     bool            `db:"vat_exempt_derived"`
	VATAmount      decimal.Decimal `db:"vat_amount"`
	Deductible     bool            `db:"deductible"`
	WHTPaymentType string          `db:"wht_payment_type"`
	WHTExplicit    bool            `db:"wht_explicit"`
	WHTAmount      decimal.Decimal `db:"wht_amount"`
	PayeeName      string          `db:"payee_name"`
	PayeeTaxID     string          `db:"payee_tax_id"`
	PayeeTier      string          `db:"payee_tier"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (row *transactionRow) toDomain() domain.Transaction {
	tx := domain.Transaction{
		ID:             row.ID,
		EntityID:       row.EntityID,
		Kind:           domain.TransactionKind(row.Kind),
		Status:         domain.TransactionStatus(row.Status),
		Date:           row.Date.UTC(),
		Amount:         row.Amount,
		TaxExclusive:   row.TaxExclusive,
		VATAmount:      row.VATAmount,
		Deductible:     row.Deductible,
		WHTPaymentType: domain.PaymentType(row.WHTPaymentType),
		WHTExplicit:    row.WHTExplicit,
		WHTAmount:      row.WHTAmount,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.VATExempt.Valid {
		tx.VATExempt = domain.Bool(row.VATExempt.Bool)
		tx.VATExemptDerived = row.VATDerived
	}
	if row.PayeeName != "" || row.PayeeTaxID != "" || row.PayeeTier != "" {
		tx.Payee = &domain.Payee{
			Name:  row.PayeeName,
			TaxID: row.PayeeTaxID,
			Tier:  domain.PayeeTier(row.PayeeTier),
		}
	}
	return tx
}

type transactionRepo struct {
	db *sqlx.DB
}

// NewTransactionRepo creates a new PostgreSQL-backed TransactionRepository.
// It only reads; transactions are written by the owning application.
func NewTransactionRepo(db *sqlx.DB) port.TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) GetByID(ctx context.Context, entityID, txID uuid.UUID) (*domain.Transaction, error) {
	var row transactionRow
	err := r.db.GetContext(ctx, &row,
		"SELECT "+transactionColumns+" FROM transactions WHERE entity_id = $1 AND id = $2",
		entityID, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("transactionRepo.GetByID: %w", err)
	}
	tx := row.toDomain()
	return &tx, nil
}

func (r *transactionRepo) ListByEntity(ctx context.Context, entityID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query, args := buildTransactionQuery(entityID, filter)

	var rows []transactionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("transactionRepo.ListByEntity: %w", err)
	}
	txs := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		txs = append(txs, rows[i].toDomain())
	}
	return txs, nil
}

func (r *transactionRepo) ListYears(ctx context.Context, entityID uuid.UUID) ([]int, error) {
	var years []int
	err := r.db.SelectContext(ctx, &years,
		`SELECT DISTINCT EXTRACT(YEAR FROM transaction_date AT TIME ZONE 'UTC')::int AS year
		 FROM transactions
		 WHERE entity_id = $1
		 ORDER BY year`,
		entityID)
	if err != nil {
		return nil, fmt.Errorf("transactionRepo.ListYears: %w", err)
	}
	return years, nil
}

func buildTransactionQuery(entityID uuid.UUID, filter domain.TransactionFilter) (string, []interface{}) {
	conditions := []string{"entity_id = $1"}
	args := []interface{}{entityID}

	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, fmt.Sprintf("transaction_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, fmt.Sprintf("transaction_date < $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY transaction_date, id"
	return query, args
}
