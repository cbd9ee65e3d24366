package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxengine/internal/domain"
)

type MockWHTLedgerRepo struct {
	mock.Mock
}

func (m *MockWHTLedgerRepo) Create(ctx context.Context, entry *domain.WHTCreditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockWHTLedgerRepo) DeleteByTransaction(ctx context.Context, txID uuid.UUID) ([]domain.WHTCreditEntry, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WHTCreditEntry), args.Error(1)
}

func (m *MockWHTLedgerRepo) ListByPayee(ctx context.Context, payeeKey string, taxYear int) ([]domain.WHTCreditEntry, error) {
	args := m.Called(ctx, payeeKey, taxYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WHTCreditEntry), args.Error(1)
}

func (m *MockWHTLedgerRepo) ListByEntity(ctx context.Context, entityID uuid.UUID, taxYear int) ([]domain.WHTCreditEntry, error) {
	args := m.Called(ctx, entityID, taxYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WHTCreditEntry), args.Error(1)
}
