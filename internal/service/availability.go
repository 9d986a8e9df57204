package service

import (
	"context"
	"fmt"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"
)

// Availability is the resolved stock position of one product over a period.
// Available is Stock - Reserved and is negative when the product is overbooked.
type Availability struct {
	Product   *domain.Product
	Stock     int
	Reserved  int
	Available int
	OK        bool
	Reason    string
}

// ReservedQuantity sums the quantity of productID held by rentals in a holding status whose
// period overlaps period. excludeRentalID is skipped so a rental never conflicts with itself.
func ReservedQuantity(rentals []domain.Rental, productID string, period domain.Period, excludeRentalID string) int {
	reserved := 0
	for i := range rentals {
		rt := &rentals[i]
		if excludeRentalID != "" && rt.ID == excludeRentalID {
			continue
		}
		if !rt.Status.HoldsStock() {
			continue
		}
		if !rt.RentalPeriod.Period().Overlaps(period) {
			continue
		}
		reserved += rt.QuantityOf(productID)
	}
	return reserved
}

type availabilityService struct {
	products repository.ProductRepository
	rentals  repository.RentalRepository
}

func NewAvailabilityService(products repository.ProductRepository, rentals repository.RentalRepository) AvailabilityService {
	return &availabilityService{products: products, rentals: rentals}
}

// Check reports unavailability through the result; only infrastructure failures are errors
func (s *availabilityService) Check(ctx context.Context, productID string, quantity int, period domain.Period, excludeID string) (*Availability, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if domain.IsNotFound(err) {
			return &Availability{Reason: domain.UnavailableReasonNotFound}, nil
		}
		return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
	}

	if !product.IsForRental {
		return &Availability{Product: product, Stock: product.Stock, Reason: domain.UnavailableReasonNotForRental}, nil
	}

	candidates, err := s.rentals.ListHolding(ctx, productID, period, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations of product %s: %w", productID, err)
	}

	reserved := ReservedQuantity(candidates, productID, period, excludeID)
	a := &Availability{
		Product:   product,
		Stock:     product.Stock,
		Reserved:  reserved,
		Available: product.Stock - reserved,
	}
	a.OK = a.Available >= quantity
	if !a.OK {
		a.Reason = domain.UnavailableReasonInsufficient
	}

	logger.Debug("Availability resolved", "productID", productID, "stock", a.Stock, "reserved", reserved, "requested", quantity)
	return a, nil
}

// resolvedLine pairs a requested line with the product it resolved to
type resolvedLine struct {
	request domain.EquipmentRequest
	product *domain.Product
}

// resolveLines checks every line without stopping at the first failure. Lines naming the same
// product are checked against their combined quantity.
func resolveLines(ctx context.Context, availability AvailabilityService, lines []domain.EquipmentRequest, period domain.Period, excludeID string) ([]resolvedLine, []domain.UnavailableItem, error) {
	requested := make(map[string]int, len(lines))
	for _, line := range lines {
		requested[line.ProductID] += line.Quantity
	}

	checked := make(map[string]*Availability, len(requested))
	resolved := make([]resolvedLine, 0, len(lines))
	var unavailable []domain.UnavailableItem

	for _, line := range lines {
		a, seen := checked[line.ProductID]
		if !seen {
			var err error
			a, err = availability.Check(ctx, line.ProductID, requested[line.ProductID], period, excludeID)
			if err != nil {
				return nil, nil, err
			}
			checked[line.ProductID] = a

			if !a.OK {
				item := domain.UnavailableItem{
					ProductID: line.ProductID,
					Reason:    a.Reason,
					Requested: requested[line.ProductID],
					Available: a.Available,
				}
				if a.Product != nil {
					item.ProductName = a.Product.Name
				}
				unavailable = append(unavailable, item)
			}
		}
		if a.OK {
			resolved = append(resolved, resolvedLine{request: line, product: a.Product})
		}
	}
	return resolved, unavailable, nil
}
