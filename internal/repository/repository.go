package repository

import (
	"context"
	"time"

	"musicstore-backend/internal/domain"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// ListRentable returns one page of products flagged for rental and the total match count
	ListRentable(ctx context.Context, category string, page, limit int) ([]domain.Product, int, error)
}

type RentalRepository interface {
	Create(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id string) (*domain.Rental, error)
	// Update overwrites the rental only while its stored UpdatedAt still equals
	// expectedUpdatedAt. A newer write makes it fail with a conflict wrapping domain.ErrStaleRental.
	Update(ctx context.Context, rental *domain.Rental, expectedUpdatedAt time.Time) error
	List(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int, error)

	// ListHolding returns the candidate rentals that may hold stock of productID during
	// period. Implementations may return a superset; callers re-apply every filter.
	ListHolding(ctx context.Context, productID string, period domain.Period, excludeID string) ([]domain.Rental, error)
	// ListOverdue returns active rentals whose agreed end date is before asOf
	ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Rental, error)
}

// SequenceRepository hands out rental number sequences, one atomic counter per day
type SequenceRepository interface {
	Next(ctx context.Context, dayKey string) (int64, error)
}

// Store groups the repositories of one backend
type Store interface {
	Products() ProductRepository
	Rentals() RentalRepository
	Sequences() SequenceRepository
	Ping(ctx context.Context) error
	Close() error
}
