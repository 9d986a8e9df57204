package service_test

import (
	"context"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/events"

	"github.com/stretchr/testify/mock"
)

// MockProductRepo
type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}
func (m *MockProductRepo) ListRentable(ctx context.Context, category string, page, limit int) ([]domain.Product, int, error) {
	args := m.Called(ctx, category, page, limit)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

// MockRentalRepo
type MockRentalRepo struct {
	mock.Mock
}

func (m *MockRentalRepo) Create(ctx context.Context, rental *domain.Rental) error {
	args := m.Called(ctx, rental)
	return args.Error(0)
}
func (m *MockRentalRepo) GetByID(ctx context.Context, id string) (*domain.Rental, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}
func (m *MockRentalRepo) Update(ctx context.Context, rental *domain.Rental, expectedUpdatedAt time.Time) error {
	args := m.Called(ctx, rental, expectedUpdatedAt)
	return args.Error(0)
}
func (m *MockRentalRepo) List(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Rental), args.Int(1), args.Error(2)
}
func (m *MockRentalRepo) ListHolding(ctx context.Context, productID string, period domain.Period, excludeID string) ([]domain.Rental, error) {
	args := m.Called(ctx, productID, period, excludeID)
	return args.Get(0).([]domain.Rental), args.Error(1)
}
func (m *MockRentalRepo) ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Rental, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).([]domain.Rental), args.Error(1)
}

// MockSequenceRepo
type MockSequenceRepo struct {
	mock.Mock
}

func (m *MockSequenceRepo) Next(ctx context.Context, dayKey string) (int64, error) {
	args := m.Called(ctx, dayKey)
	return args.Get(0).(int64), args.Error(1)
}

// MockLocker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	args := m.Called(ctx, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// MockPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendRentalConfirmation(ctx context.Context, to string, rental *domain.Rental) error {
	args := m.Called(ctx, to, rental)
	return args.Error(0)
}
func (m *MockEmailService) SendRentalStatusUpdate(ctx context.Context, to string, rental *domain.Rental, previous domain.RentalStatus) error {
	args := m.Called(ctx, to, rental, previous)
	return args.Error(0)
}
func (m *MockEmailService) SendOverdueReminder(ctx context.Context, to string, rental *domain.Rental) error {
	args := m.Called(ctx, to, rental)
	return args.Error(0)
}
