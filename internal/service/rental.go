package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/events"
	"musicstore-backend/internal/lock"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/metrics"
	"musicstore-backend/internal/repository"
	"musicstore-backend/internal/utils"

	"github.com/google/uuid"
)

const systemActor = "system"

// RentalOptions carries the tunables of the rental service
type RentalOptions struct {
	Policy       utils.PricingPolicy
	NumberPrefix string
	Clock        Clock
}

type rentalService struct {
	rentals      repository.RentalRepository
	sequences    repository.SequenceRepository
	availability AvailabilityService
	locker       lock.Locker
	publisher    events.Publisher
	emailSvc     EmailService
	policy       utils.PricingPolicy
	prefix       string
	now          Clock
}

func NewRentalService(
	rentals repository.RentalRepository,
	sequences repository.SequenceRepository,
	availability AvailabilityService,
	locker lock.Locker,
	publisher events.Publisher,
	emailSvc EmailService,
	opts RentalOptions,
) RentalService {
	if opts.Clock == nil {
		opts.Clock = systemClock
	}
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "ALQ"
	}
	return &rentalService{
		rentals:      rentals,
		sequences:    sequences,
		availability: availability,
		locker:       locker,
		publisher:    publisher,
		emailSvc:     emailSvc,
		policy:       opts.Policy,
		prefix:       opts.NumberPrefix,
		now:          opts.Clock,
	}
}

func (s *rentalService) CreateRental(ctx context.Context, req domain.CreateRentalRequest) (*domain.CreateRentalResult, error) {
	logger.EnterMethod("rentalService.CreateRental", "userID", req.UserID, "lines", len(req.Equipment))

	if req.UserID == "" {
		return nil, domain.NewUnauthorized("authentication required")
	}
	period, days, err := validateReservation(req.Equipment, req.StartDate, req.EndDate)
	if err != nil {
		logger.ExitMethodWithError("rentalService.CreateRental", err, "userID", req.UserID)
		return nil, err
	}
	if req.DeliveryRequired && strings.TrimSpace(req.Address) == "" {
		return nil, domain.NewValidation("delivery address is required when delivery is requested")
	}

	rental, conflicts, err := s.reserve(ctx, req, period, days)
	if err != nil {
		logger.ExitMethodWithError("rentalService.CreateRental", err, "userID", req.UserID)
		return nil, err
	}
	if len(conflicts) > 0 {
		recordConflicts(conflicts)
		logger.ExitMethod("rentalService.CreateRental", "conflicts", len(conflicts))
		return &domain.CreateRentalResult{Conflicts: conflicts}, nil
	}

	metrics.RentalsCreated.Inc()
	s.publish(ctx, events.NewRentalEvent(events.TypeRentalCreated, rental, rental.CreatedAt))
	if rental.ContactEmail != "" {
		if err := s.emailSvc.SendRentalConfirmation(ctx, rental.ContactEmail, rental); err != nil {
			logger.Warn("Failed to send rental confirmation", "rentalID", rental.ID, "error", err)
		}
	}

	logger.ExitMethod("rentalService.CreateRental", "rentalID", rental.ID, "rentalNumber", rental.RentalNumber)
	return &domain.CreateRentalResult{Rental: rental}, nil
}

// reserve runs the conflict check and the insert under the product locks
func (s *rentalService) reserve(ctx context.Context, req domain.CreateRentalRequest, period domain.Period, days int) (*domain.Rental, []domain.UnavailableItem, error) {
	release, err := s.acquire(ctx, requestedProductIDs(req.Equipment))
	if err != nil {
		return nil, nil, err
	}
	defer release()

	resolved, unavailable, err := resolveLines(ctx, s.availability, req.Equipment, period, "")
	if err != nil {
		return nil, nil, err
	}
	if len(unavailable) > 0 {
		return nil, unavailable, nil
	}

	lines, subtotal := priceLines(resolved, days)
	fees := s.policy.Price(subtotal, len(lines), req.DeliveryRequired)

	now := s.now()
	dayKey := utils.DayKey(now)
	seq, err := s.sequences.Next(ctx, dayKey)
	if err != nil {
		return nil, nil, err
	}

	rental := &domain.Rental{
		ID:           uuid.NewString(),
		RentalNumber: utils.FormatRentalNumber(s.prefix, dayKey, seq),
		UserID:       req.UserID,
		ContactEmail: req.ContactEmail,
		Equipment:    lines,
		RentalPeriod: domain.RentalPeriod{StartDate: period.StartDate, EndDate: period.EndDate},
		Status:       domain.RentalStatusPending,
		Pricing: domain.Pricing{
			Subtotal:    fees.Subtotal,
			DeliveryFee: fees.DeliveryFee,
			SetupFee:    fees.SetupFee,
		},
		Delivery: domain.Delivery{Required: req.DeliveryRequired, Address: strings.TrimSpace(req.Address)},
		Notes:    req.Notes,
		StatusHistory: []domain.StatusChange{{
			Status:    domain.RentalStatusPending,
			Date:      now,
			Note:      "rental requested",
			UpdatedBy: req.UserID,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	rental.Pricing.Recalculate()

	if err := s.rentals.Create(ctx, rental); err != nil {
		return nil, nil, err
	}
	return rental, nil, nil
}

func (s *rentalService) GetRental(ctx context.Context, caller domain.Caller, rentalID string) (*domain.Rental, error) {
	return s.loadAuthorized(ctx, caller, rentalID)
}

// ListRentals returns the caller's own rentals. Admins see every rental unless they filter by user.
func (s *rentalService) ListRentals(ctx context.Context, caller domain.Caller, filter domain.RentalFilter) ([]domain.Rental, int, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	if !caller.IsAdmin() {
		filter.UserID = caller.UserID
	}
	return s.rentals.List(ctx, filter)
}

func (s *rentalService) ExtendRental(ctx context.Context, caller domain.Caller, rentalID string, newEndDate time.Time) (*domain.ExtensionResult, error) {
	logger.EnterMethod("rentalService.ExtendRental", "rentalID", rentalID, "newEndDate", newEndDate)

	rental, err := s.loadAuthorized(ctx, caller, rentalID)
	if err != nil {
		return nil, err
	}

	rental, release, err := s.lockRental(ctx, rental)
	if err != nil {
		return nil, err
	}
	defer release()

	if !rental.CanExtend() {
		return nil, &domain.AppError{
			Type:    domain.ErrorTypeValidation,
			Message: fmt.Sprintf("rental in status %s cannot be extended", rental.Status),
			Err:     domain.ErrInvalidTransition,
		}
	}
	oldEnd := rental.RentalPeriod.EndDate
	if !newEndDate.After(oldEnd) {
		return nil, &domain.AppError{
			Type:    domain.ErrorTypeValidation,
			Message: "new end date must be after the current end date",
			Err:     domain.ErrInvalidPeriod,
		}
	}

	newPeriod := domain.Period{StartDate: rental.RentalPeriod.StartDate, EndDate: newEndDate}
	conflicts, err := s.checkHeld(ctx, rental, newPeriod)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		recordConflicts(conflicts)
		logger.ExitMethod("rentalService.ExtendRental", "conflicts", len(conflicts))
		return &domain.ExtensionResult{Conflicts: conflicts}, nil
	}

	additionalDays := utils.RentalDays(oldEnd, newEndDate)
	additionalCost := utils.ExtensionCost(rental.DailyTotal(), additionalDays)
	totalDays := utils.RentalDays(rental.RentalPeriod.StartDate, newEndDate)
	for i := range rental.Equipment {
		line := &rental.Equipment[i]
		line.TotalDays = totalDays
		line.Subtotal = line.Subtotal.Add(utils.LineSubtotal(line.DailyRate, line.Quantity, additionalDays))
	}

	loadedAt := rental.UpdatedAt
	now := s.now()
	rental.RentalPeriod.EndDate = newEndDate
	rental.Pricing.Subtotal = rental.Pricing.Subtotal.Add(additionalCost)
	rental.Pricing.Recalculate()
	rental.UpdatedAt = now
	rental.StatusHistory = append(rental.StatusHistory, domain.StatusChange{
		Status:    rental.Status,
		Date:      now,
		Note:      fmt.Sprintf("extended until %s (+%d days)", utils.FormatDate(newEndDate), additionalDays),
		UpdatedBy: caller.UserID,
	})

	if err := s.rentals.Update(ctx, rental, loadedAt); err != nil {
		return nil, err
	}

	event := events.NewRentalEvent(events.TypeRentalExtended, rental, now)
	event.Note = fmt.Sprintf("+%d days, +%s", additionalDays, additionalCost.StringFixed(2))
	s.publish(ctx, event)

	logger.ExitMethod("rentalService.ExtendRental", "rentalID", rental.ID, "additionalDays", additionalDays, "additionalCost", additionalCost.String())
	return &domain.ExtensionResult{
		Rental:         rental,
		AdditionalDays: additionalDays,
		AdditionalCost: additionalCost,
	}, nil
}

func (s *rentalService) CancelRental(ctx context.Context, caller domain.Caller, rentalID, reason string) (*domain.Rental, error) {
	rental, err := s.loadAuthorized(ctx, caller, rentalID)
	if err != nil {
		return nil, err
	}

	rental, release, err := s.lockRental(ctx, rental)
	if err != nil {
		return nil, err
	}
	defer release()

	note := strings.TrimSpace(reason)
	if note == "" {
		note = "cancelled"
	}
	return s.applyTransition(ctx, rental, domain.RentalStatusCancelled, note, caller.UserID)
}

// UpdateStatus is the administrative transition. It runs under the product locks, and moving
// a rental into a stock-holding status re-checks availability since non-holding rentals were never counted.
func (s *rentalService) UpdateStatus(ctx context.Context, caller domain.Caller, rentalID string, status domain.RentalStatus, note string) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.UpdateStatus", "rentalID", rentalID, "status", status, "adminID", caller.UserID)

	if !caller.IsAdmin() {
		return nil, domain.NewForbidden("only administrators can change rental status")
	}

	rental, err := s.rentals.GetByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}

	rental, release, err := s.lockRental(ctx, rental)
	if err != nil {
		return nil, err
	}
	defer release()

	if !rental.Status.HoldsStock() && status.HoldsStock() && rental.Status.CanTransitionTo(status) {
		conflicts, err := s.checkHeld(ctx, rental, rental.RentalPeriod.Period())
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			recordConflicts(conflicts)
			return nil, conflictError(conflicts)
		}
	}

	updated, err := s.applyTransition(ctx, rental, status, note, caller.UserID)
	if err != nil {
		logger.ExitMethodWithError("rentalService.UpdateStatus", err, "rentalID", rentalID)
		return nil, err
	}
	logger.ExitMethod("rentalService.UpdateStatus", "rentalID", rentalID, "status", updated.Status)
	return updated, nil
}

func (s *rentalService) MarkOverdue(ctx context.Context) (int, error) {
	rentals, err := s.rentals.ListOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range rentals {
		marked, err := s.markOverdue(ctx, &rentals[i])
		if err != nil {
			logger.Error("Failed to mark rental overdue", "rentalID", rentals[i].ID, "error", err)
			continue
		}
		if marked {
			count++
		}
	}
	return count, nil
}

// markOverdue re-reads the rental under its locks so a concurrent return or extension wins
func (s *rentalService) markOverdue(ctx context.Context, candidate *domain.Rental) (bool, error) {
	rental, release, err := s.lockRental(ctx, candidate)
	if err != nil {
		return false, err
	}
	defer release()

	if !rental.PastDue(s.now()) {
		logger.Debug("Rental no longer overdue", "rentalID", rental.ID, "status", rental.Status, "endDate", rental.RentalPeriod.EndDate)
		return false, nil
	}
	if _, err := s.applyTransition(ctx, rental, domain.RentalStatusOverdue, "rental period ended without return", systemActor); err != nil {
		return false, err
	}
	logger.Debug("Marked rental as overdue", "rentalID", rental.ID, "rentalNumber", rental.RentalNumber, "endDate", rental.RentalPeriod.EndDate)
	return true, nil
}

func (s *rentalService) RemindOverdue(ctx context.Context) (int, error) {
	sent := 0
	filter := domain.RentalFilter{Status: domain.RentalStatusOverdue, Page: 1, Limit: MaxLimit}
	for {
		rentals, total, err := s.rentals.List(ctx, filter)
		if err != nil {
			return sent, err
		}
		for i := range rentals {
			rt := &rentals[i]
			if rt.ContactEmail == "" {
				continue
			}
			if err := s.emailSvc.SendOverdueReminder(ctx, rt.ContactEmail, rt); err != nil {
				logger.Error("Failed to send overdue reminder", "rentalID", rt.ID, "error", err)
				continue
			}
			sent++
		}
		if len(rentals) == 0 || filter.Page*filter.Limit >= total {
			return sent, nil
		}
		filter.Page++
	}
}

func (s *rentalService) applyTransition(ctx context.Context, rental *domain.Rental, to domain.RentalStatus, note, by string) (*domain.Rental, error) {
	previous := rental.Status
	loadedAt := rental.UpdatedAt
	now := s.now()
	if err := rental.Transition(to, note, by, now); err != nil {
		return nil, err
	}
	if err := s.rentals.Update(ctx, rental, loadedAt); err != nil {
		return nil, err
	}
	metrics.StatusTransitions.WithLabelValues(string(previous), string(to)).Inc()

	event := events.NewRentalEvent(events.TypeRentalStatusChanged, rental, now)
	event.PreviousStatus = previous
	event.Note = note
	s.publish(ctx, event)

	if rental.ContactEmail != "" {
		if err := s.emailSvc.SendRentalStatusUpdate(ctx, rental.ContactEmail, rental, previous); err != nil {
			logger.Warn("Failed to send rental status update", "rentalID", rental.ID, "error", err)
		}
	}
	return rental, nil
}

// checkHeld re-resolves every product of an existing rental over period, excluding the rental itself
func (s *rentalService) checkHeld(ctx context.Context, rental *domain.Rental, period domain.Period) ([]domain.UnavailableItem, error) {
	var conflicts []domain.UnavailableItem
	for _, productID := range rental.ProductIDs() {
		quantity := rental.QuantityOf(productID)
		a, err := s.availability.Check(ctx, productID, quantity, period, rental.ID)
		if err != nil {
			return nil, err
		}
		if !a.OK {
			item := domain.UnavailableItem{
				ProductID: productID,
				Reason:    a.Reason,
				Requested: quantity,
				Available: a.Available,
			}
			if a.Product != nil {
				item.ProductName = a.Product.Name
			}
			conflicts = append(conflicts, item)
		}
	}
	return conflicts, nil
}

func (s *rentalService) loadAuthorized(ctx context.Context, caller domain.Caller, rentalID string) (*domain.Rental, error) {
	rental, err := s.rentals.GetByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(rental.UserID) {
		return nil, domain.NewForbidden("you do not have access to this rental")
	}
	return rental, nil
}

// lockRental takes the locks of the rental's products and returns a fresh copy read under them.
// The equipment list never changes after creation, so the product set of the earlier copy is safe to lock.
func (s *rentalService) lockRental(ctx context.Context, rental *domain.Rental) (*domain.Rental, func(), error) {
	release, err := s.acquire(ctx, rental.ProductIDs())
	if err != nil {
		return nil, nil, err
	}
	fresh, err := s.rentals.GetByID(ctx, rental.ID)
	if err != nil {
		release()
		return nil, nil, err
	}
	return fresh, release, nil
}

func (s *rentalService) acquire(ctx context.Context, productIDs []string) (func(), error) {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, productIDs)
	if err != nil {
		if domain.IsConflict(err) {
			metrics.LockWait.WithLabelValues("contended").Observe(time.Since(start).Seconds())
			logger.Warn("Reservation lock contended", "products", productIDs, "error", err)
		} else {
			metrics.LockWait.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		}
		return nil, err
	}
	metrics.LockWait.WithLabelValues("acquired").Observe(time.Since(start).Seconds())
	return release, nil
}

// publish is best effort; a lost event never fails the rental operation
func (s *rentalService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish rental event", "type", event.Type, "rentalID", event.RentalID, "error", err)
	}
}

func requestedProductIDs(lines []domain.EquipmentRequest) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func conflictError(items []domain.UnavailableItem) error {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", item.ProductID, item.Requested, item.Available))
	}
	return domain.NewConflict("insufficient stock: " + strings.Join(parts, ", "))
}
