package http

import (
	"context"
	"time"

	"musicstore-backend/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListEquipment(ctx context.Context, filter domain.EquipmentFilter) ([]domain.EquipmentItem, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.EquipmentItem), args.Int(1), args.Error(2)
}

type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuoteResult), args.Error(1)
}

type MockRentalService struct {
	mock.Mock
}

func (m *MockRentalService) CreateRental(ctx context.Context, req domain.CreateRentalRequest) (*domain.CreateRentalResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateRentalResult), args.Error(1)
}
func (m *MockRentalService) GetRental(ctx context.Context, caller domain.Caller, rentalID string) (*domain.Rental, error) {
	args := m.Called(ctx, caller, rentalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}
func (m *MockRentalService) ListRentals(ctx context.Context, caller domain.Caller, filter domain.RentalFilter) ([]domain.Rental, int, error) {
	args := m.Called(ctx, caller, filter)
	return args.Get(0).([]domain.Rental), args.Int(1), args.Error(2)
}
func (m *MockRentalService) ExtendRental(ctx context.Context, caller domain.Caller, rentalID string, newEndDate time.Time) (*domain.ExtensionResult, error) {
	args := m.Called(ctx, caller, rentalID, newEndDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtensionResult), args.Error(1)
}
func (m *MockRentalService) CancelRental(ctx context.Context, caller domain.Caller, rentalID, reason string) (*domain.Rental, error) {
	args := m.Called(ctx, caller, rentalID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}
func (m *MockRentalService) UpdateStatus(ctx context.Context, caller domain.Caller, rentalID string, status domain.RentalStatus, note string) (*domain.Rental, error) {
	args := m.Called(ctx, caller, rentalID, status, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}
func (m *MockRentalService) MarkOverdue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *MockRentalService) RemindOverdue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
