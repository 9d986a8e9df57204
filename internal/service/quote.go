package service

import (
	"context"
	"fmt"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/metrics"
	"musicstore-backend/internal/utils"

	"github.com/shopspring/decimal"
)

type quoteService struct {
	availability AvailabilityService
	policy       utils.PricingPolicy
	now          Clock
}

func NewQuoteService(availability AvailabilityService, policy utils.PricingPolicy, now Clock) QuoteService {
	if now == nil {
		now = systemClock
	}
	return &quoteService{availability: availability, policy: policy, now: now}
}

func (s *quoteService) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	logger.EnterMethod("quoteService.Quote", "lines", len(req.Equipment))

	period, days, err := validateReservation(req.Equipment, req.StartDate, req.EndDate)
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("invalid").Inc()
		logger.ExitMethodWithError("quoteService.Quote", err)
		return nil, err
	}

	resolved, unavailable, err := resolveLines(ctx, s.availability, req.Equipment, period, "")
	if err != nil {
		logger.ExitMethodWithError("quoteService.Quote", err)
		return nil, err
	}
	if len(unavailable) > 0 {
		recordConflicts(unavailable)
		metrics.QuotesTotal.WithLabelValues("unavailable").Inc()
		logger.ExitMethod("quoteService.Quote", "unavailable", len(unavailable))
		return &domain.QuoteResult{UnavailableItems: unavailable}, nil
	}

	lines, subtotal := priceLines(resolved, days)
	fees := s.policy.Price(subtotal, len(lines), req.DeliveryRequired)

	quote := &domain.Quote{
		EquipmentItems: lines,
		Pricing: domain.QuotePricing{
			Subtotal:    fees.Subtotal,
			DeliveryFee: fees.DeliveryFee,
			SetupFee:    fees.SetupFee,
			TotalAmount: fees.TotalAmount,
			Deposit:     fees.Deposit,
		},
		RentalPeriod: period,
		TotalDays:    days,
		ValidUntil:   s.now().Add(s.policy.QuoteValidity),
	}

	metrics.QuotesTotal.WithLabelValues("quoted").Inc()
	logger.ExitMethod("quoteService.Quote", "total", quote.Pricing.TotalAmount.String())
	return &domain.QuoteResult{Quote: quote}, nil
}

// validateReservation checks the request shape and returns the period and its billable days
func validateReservation(lines []domain.EquipmentRequest, start, end time.Time) (domain.Period, int, error) {
	if len(lines) == 0 {
		return domain.Period{}, 0, domain.NewValidation("at least one equipment item is required")
	}
	perProduct := make(map[string]int, len(lines))
	for i, line := range lines {
		if line.ProductID == "" {
			return domain.Period{}, 0, domain.NewValidation(fmt.Sprintf("equipment[%d]: productId is required", i))
		}
		if line.Quantity < 1 {
			return domain.Period{}, 0, domain.NewValidation(fmt.Sprintf("equipment[%d]: quantity must be at least 1", i))
		}
		// Compared before adding so the running total can never overflow
		if line.Quantity > domain.MaxLineQuantity-perProduct[line.ProductID] {
			return domain.Period{}, 0, domain.NewValidation(fmt.Sprintf(
				"equipment[%d]: quantity for product %s exceeds %d", i, line.ProductID, domain.MaxLineQuantity))
		}
		perProduct[line.ProductID] += line.Quantity
	}
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return domain.Period{}, 0, &domain.AppError{
			Type:    domain.ErrorTypeValidation,
			Message: "invalid period: end date must be after start date",
			Err:     domain.ErrInvalidPeriod,
		}
	}
	return domain.Period{StartDate: start, EndDate: end}, utils.RentalDays(start, end), nil
}

// priceLines snapshots each product's daily rate into a line and sums the line subtotals
func priceLines(resolved []resolvedLine, days int) ([]domain.EquipmentLine, decimal.Decimal) {
	lines := make([]domain.EquipmentLine, 0, len(resolved))
	subtotal := decimal.Zero
	for _, r := range resolved {
		rate := r.product.RentalPrice.Daily
		lineSubtotal := utils.LineSubtotal(rate, r.request.Quantity, days)
		lines = append(lines, domain.EquipmentLine{
			ProductID:   r.product.ID,
			ProductName: r.product.Name,
			Quantity:    r.request.Quantity,
			DailyRate:   rate,
			TotalDays:   days,
			Subtotal:    lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}
	return lines, subtotal
}

func recordConflicts(items []domain.UnavailableItem) {
	for _, item := range items {
		metrics.AvailabilityConflicts.WithLabelValues(item.Reason).Inc()
	}
}
