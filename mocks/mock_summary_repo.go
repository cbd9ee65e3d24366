package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxengine/internal/domain"
)

type MockVATSummaryRepo struct {
	mock.Mock
}

func (m *MockVATSummaryRepo) Upsert(ctx context.Context, summary *domain.VATSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockVATSummaryRepo) Get(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.VATSummary, error) {
	args := m.Called(ctx, entityID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VATSummary), args.Error(1)
}

func (m *MockVATSummaryRepo) ListByYear(ctx context.Context, entityID uuid.UUID, year int) ([]domain.VATSummary, error) {
	args := m.Called(ctx, entityID, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VATSummary), args.Error(1)
}

type MockWHTSummaryRepo struct {
	mock.Mock
}

func (m *MockWHTSummaryRepo) Upsert(ctx context.Context, summary *domain.WHTSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockWHTSummaryRepo) Get(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) (*domain.WHTSummary, error) {
	args := m.Called(ctx, entityID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WHTSummary), args.Error(1)
}
