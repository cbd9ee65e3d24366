package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxengine/internal/domain"
)

// MockPeriodRecomputer is a mock implementation of service.PeriodRecomputer.
type MockPeriodRecomputer struct {
	mock.Mock
}

func (m *MockPeriodRecomputer) RecomputePeriod(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) error {
	args := m.Called(ctx, entityID, period)
	return args.Error(0)
}
