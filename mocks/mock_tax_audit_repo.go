package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taxengine/internal/domain"
)

type MockTaxAuditRepo struct {
	mock.Mock
}

func (m *MockTaxAuditRepo) Create(ctx context.Context, entry *domain.TaxAuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
