package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxengine/internal/domain"
)

// MockEntityRepo is a mock implementation of port.EntityRepository.
type MockEntityRepo struct {
	mock.Mock
}

func (m *MockEntityRepo) GetByID(ctx context.Context, entityID uuid.UUID) (*domain.Entity, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entity), args.Error(1)
}

func (m *MockEntityRepo) List(ctx context.Context, offset, limit int) ([]domain.Entity, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Entity), args.Int(1), args.Error(2)
}
