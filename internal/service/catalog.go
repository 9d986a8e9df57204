package service

import (
	"context"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// NormalizePage applies the listing defaults: page 1, limit 20, at most 100 per page
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

type catalogService struct {
	products     repository.ProductRepository
	availability AvailabilityService
}

func NewCatalogService(products repository.ProductRepository, availability AvailabilityService) CatalogService {
	return &catalogService{products: products, availability: availability}
}

func (s *catalogService) ListEquipment(ctx context.Context, filter domain.EquipmentFilter) ([]domain.EquipmentItem, int, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	if filter.Period != nil && !filter.Period.EndDate.After(filter.Period.StartDate) {
		return nil, 0, &domain.AppError{
			Type:    domain.ErrorTypeValidation,
			Message: "invalid period: end date must be after start date",
			Err:     domain.ErrInvalidPeriod,
		}
	}

	products, total, err := s.products.ListRentable(ctx, filter.Category, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.EquipmentItem, 0, len(products))
	for i := range products {
		item := domain.EquipmentItem{Product: products[i]}
		if filter.Period != nil {
			a, err := s.availability.Check(ctx, products[i].ID, 1, *filter.Period, "")
			if err != nil {
				return nil, 0, err
			}
			available := a.Available
			item.AvailableStock = &available
		}
		items = append(items, item)
	}

	logger.Debug("Equipment listed", "category", filter.Category, "page", filter.Page, "count", len(items), "total", total)
	return items, total, nil
}
