package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxengine/internal/domain"
)

type MockRecomputeQueueRepo struct {
	mock.Mock
}

func (m *MockRecomputeQueueRepo) Enqueue(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) error {
	args := m.Called(ctx, entityID, period)
	return args.Error(0)
}

func (m *MockRecomputeQueueRepo) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]domain.RecomputeRequest, error) {
	args := m.Called(ctx, limit, staleBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RecomputeRequest), args.Error(1)
}

func (m *MockRecomputeQueueRepo) MarkDone(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRecomputeQueueRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, maxAttempts int) error {
	args := m.Called(ctx, id, lastErr, maxAttempts)
	return args.Error(0)
}
