package service

import (
	"context"
	"time"

	"musicstore-backend/internal/domain"
)

// Clock returns the current time; injected so pricing and numbering are reproducible in tests
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type AvailabilityService interface {
	Check(ctx context.Context, productID string, quantity int, period domain.Period, excludeID string) (*Availability, error)
}

type QuoteService interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error)
}

type CatalogService interface {
	ListEquipment(ctx context.Context, filter domain.EquipmentFilter) ([]domain.EquipmentItem, int, error)
}

type RentalService interface {
	CreateRental(ctx context.Context, req domain.CreateRentalRequest) (*domain.CreateRentalResult, error)
	GetRental(ctx context.Context, caller domain.Caller, rentalID string) (*domain.Rental, error)
	ListRentals(ctx context.Context, caller domain.Caller, filter domain.RentalFilter) ([]domain.Rental, int, error)
	ExtendRental(ctx context.Context, caller domain.Caller, rentalID string, newEndDate time.Time) (*domain.ExtensionResult, error)
	CancelRental(ctx context.Context, caller domain.Caller, rentalID, reason string) (*domain.Rental, error)
	UpdateStatus(ctx context.Context, caller domain.Caller, rentalID string, status domain.RentalStatus, note string) (*domain.Rental, error)
	// MarkOverdue moves active rentals past their end date to overdue and returns how many moved
	MarkOverdue(ctx context.Context) (int, error)
	// RemindOverdue emails the customer of every overdue rental and returns how many were sent
	RemindOverdue(ctx context.Context) (int, error)
}

type EmailService interface {
	SendRentalConfirmation(ctx context.Context, to string, rental *domain.Rental) error
	SendRentalStatusUpdate(ctx context.Context, to string, rental *domain.Rental, previous domain.RentalStatus) error
	SendOverdueReminder(ctx context.Context, to string, rental *domain.Rental) error
}
