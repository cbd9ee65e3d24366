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

type entityRepo struct {
	db *sqlx.DB
}

// NewEntityRepo creates a new PostgreSQL-backed EntityRepository.
func NewEntityRepo(db *sqlx.DB) port.EntityRepository {
	return &entityRepo{db: db}
}

func (r *entityRepo) GetByID(ctx context.Context, entityID uuid.UUID) (*domain.Entity, error) {
	var entity domain.Entity
	err := r.db.GetContext(ctx, &entity, "SELECT * FROM entities WHERE id = $1", entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("entityRepo.GetByID: %w", err)
	}
	return &entity, nil
}

func (r *entityRepo) List(ctx context.Context, offset, limit int) ([]domain.Entity, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM entities")
	if err != nil {
		return nil, 0, fmt.Errorf("entityRepo.List count: %w", err)
	}

	var entities []domain.Entity
	err = r.db.SelectContext(ctx, &entities,
		"SELECT * FROM entities ORDER BY created_at, id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("entityRepo.List: %w", err)
	}
	return entities, total, nil
}
