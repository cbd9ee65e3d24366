package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxengine/internal/domain"
	"taxengine/internal/port"
)

// auditor records tax-effect mutations. Failures are logged but never block
// the computation that produced them.
type auditor struct {
	repo   port.TaxAuditRepository
	logger *zap.Logger
}

func (a auditor) record(ctx context.Context, entityID uuid.UUID, txID *uuid.UUID, action domain.AuditAction, details interface{}) {
	if a.repo == nil {
		return
	}
	raw, err := json.Marshal(details)
	if err != nil {
		a.logger.Error("auditor.record: marshaling details", zap.String("action", string(action)), zap.Error(err))
		return
	}
	entry := &domain.TaxAuditEntry{
		ID:            uuid.New(),
		EntityID:      entityID,
		TransactionID: txID,
		Action:        string(action),
		Details:       raw,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		a.logger.Error("auditor.record: failed to write audit entry",
			zap.String("action", string(action)),
			zap.Stringer("entity_id", entityID),
			zap.Error(err))
	}
}
