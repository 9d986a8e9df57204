package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type RentalStatus string

const (
	RentalStatusPending   RentalStatus = "pending"
	RentalStatusConfirmed RentalStatus = "confirmed"
	RentalStatusPreparing RentalStatus = "preparing"
	RentalStatusReady     RentalStatus = "ready"
	RentalStatusActive    RentalStatus = "active"
	RentalStatusOverdue   RentalStatus = "overdue"
	RentalStatusReturning RentalStatus = "returning"
	RentalStatusCompleted RentalStatus = "completed"
	RentalStatusCancelled RentalStatus = "cancelled"
)

// rentalTransitions lists the statuses reachable from each non-terminal status.
var rentalTransitions = map[RentalStatus][]RentalStatus{
	RentalStatusPending:   {RentalStatusConfirmed, RentalStatusCancelled},
	RentalStatusConfirmed: {RentalStatusPreparing, RentalStatusReady, RentalStatusActive, RentalStatusCancelled},
	RentalStatusPreparing: {RentalStatusReady, RentalStatusActive, RentalStatusCancelled},
	RentalStatusReady:     {RentalStatusActive, RentalStatusCancelled},
	RentalStatusActive:    {RentalStatusOverdue, RentalStatusReturning, RentalStatusCompleted, RentalStatusCancelled},
	RentalStatusOverdue:   {RentalStatusReturning, RentalStatusCompleted, RentalStatusCancelled},
	RentalStatusReturning: {RentalStatusCompleted, RentalStatusCancelled},
}

// HoldingStatuses are the statuses whose reservations consume stock. Equipment that is
// overdue or on its way back is still out of the store and keeps its units.
var HoldingStatuses = []RentalStatus{
	RentalStatusConfirmed,
	RentalStatusPreparing,
	RentalStatusReady,
	RentalStatusActive,
	RentalStatusOverdue,
	RentalStatusReturning,
}

// ParseRentalStatus converts a wire value into a known status
func ParseRentalStatus(s string) (RentalStatus, error) {
	st := RentalStatus(s)
	switch st {
	case RentalStatusPending, RentalStatusConfirmed, RentalStatusPreparing, RentalStatusReady,
		RentalStatusActive, RentalStatusOverdue, RentalStatusReturning, RentalStatusCompleted,
		RentalStatusCancelled:
		return st, nil
	}
	return "", NewValidation(fmt.Sprintf("unknown rental status %q", s))
}

// IsTerminal reports whether no further transition is possible
func (s RentalStatus) IsTerminal() bool {
	return s == RentalStatusCompleted || s == RentalStatusCancelled
}

// HoldsStock reports whether a reservation in this status counts against stock
func (s RentalStatus) HoldsStock() bool {
	for _, h := range HoldingStatuses {
		if s == h {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the transition table allows s -> to
func (s RentalStatus) CanTransitionTo(to RentalStatus) bool {
	for _, next := range rentalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Period is a closed date range. EndDate must be after StartDate.
type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Overlaps uses inclusive bounds: a period ending on day N conflicts with one starting on day N.
func (p Period) Overlaps(other Period) bool {
	return !p.StartDate.After(other.EndDate) && !p.EndDate.Before(other.StartDate)
}

// RentalPeriod is the agreed period plus the dates the equipment actually left and came back
type RentalPeriod struct {
	StartDate       time.Time  `json:"startDate"`
	EndDate         time.Time  `json:"endDate"`
	ActualStartDate *time.Time `json:"actualStartDate,omitempty"`
	ActualEndDate   *time.Time `json:"actualEndDate,omitempty"`
}

func (rp RentalPeriod) Period() Period {
	return Period{StartDate: rp.StartDate, EndDate: rp.EndDate}
}

// EquipmentLine is one product reserved by a rental. The daily rate is a snapshot taken at
// creation time; later catalog price changes do not affect existing rentals.
type EquipmentLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	DailyRate   decimal.Decimal `json:"dailyRate"`
	TotalDays   int             `json:"totalDays"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Pricing of a persisted rental
type Pricing struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	DeliveryFee    decimal.Decimal `json:"deliveryFee"`
	SetupFee       decimal.Decimal `json:"setupFee"`
	LateFee        decimal.Decimal `json:"lateFee"`
	DamageFee      decimal.Decimal `json:"damageFee"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

// Recalculate restores TotalAmount = Subtotal + fees - DiscountAmount
func (p *Pricing) Recalculate() {
	p.TotalAmount = p.Subtotal.
		Add(p.DeliveryFee).
		Add(p.SetupFee).
		Add(p.LateFee).
		Add(p.DamageFee).
		Sub(p.DiscountAmount).
		Round(2)
}

type Delivery struct {
	Required bool   `json:"required"`
	Address  string `json:"address,omitempty"`
}

type StatusChange struct {
	Status    RentalStatus `json:"status"`
	Date      time.Time    `json:"date"`
	Note      string       `json:"note,omitempty"`
	UpdatedBy string       `json:"updatedBy,omitempty"`
}

type Rental struct {
	ID            string          `json:"id"`
	RentalNumber  string          `json:"rentalNumber"`
	UserID        string          `json:"userId"`
	ContactEmail  string          `json:"contactEmail,omitempty"`
	Equipment     []EquipmentLine `json:"equipment"`
	RentalPeriod  RentalPeriod    `json:"rentalPeriod"`
	Status        RentalStatus    `json:"status"`
	Pricing       Pricing         `json:"pricing"`
	Delivery      Delivery        `json:"delivery"`
	Notes         string          `json:"notes,omitempty"`
	StatusHistory []StatusChange  `json:"statusHistory"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// QuantityOf sums every line reserving productID
func (r *Rental) QuantityOf(productID string) int {
	total := 0
	for _, line := range r.Equipment {
		if line.ProductID == productID {
			total += line.Quantity
		}
	}
	return total
}

// DailyTotal is sum(dailyRate * quantity) across all lines
func (r *Rental) DailyTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Equipment {
		total = total.Add(line.DailyRate.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// ProductIDs returns the distinct products referenced by the rental, in line order
func (r *Rental) ProductIDs() []string {
	seen := make(map[string]bool, len(r.Equipment))
	ids := make([]string, 0, len(r.Equipment))
	for _, line := range r.Equipment {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

// Transition moves the rental to a new status through the transition table. Entering
// active stamps the actual start date and entering completed stamps the actual end date,
// unless they were already set.
func (r *Rental) Transition(to RentalStatus, note, updatedBy string, at time.Time) error {
	if !r.Status.CanTransitionTo(to) {
		return &AppError{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("cannot change rental status from %s to %s", r.Status, to),
			Err:     ErrInvalidTransition,
		}
	}

	switch to {
	case RentalStatusActive:
		if r.RentalPeriod.ActualStartDate == nil {
			t := at
			r.RentalPeriod.ActualStartDate = &t
		}
	case RentalStatusCompleted:
		if r.RentalPeriod.ActualEndDate == nil {
			t := at
			r.RentalPeriod.ActualEndDate = &t
		}
	}

	r.Status = to
	r.UpdatedAt = at
	r.StatusHistory = append(r.StatusHistory, StatusChange{
		Status:    to,
		Date:      at,
		Note:      note,
		UpdatedBy: updatedBy,
	})
	return nil
}

// CanExtend reports whether the rental period may still be extended
// PastDue reports an active rental whose agreed end date is before asOf
func (r *Rental) PastDue(asOf time.Time) bool {
	return r.Status == RentalStatusActive && r.RentalPeriod.EndDate.Before(asOf)
}

func (r *Rental) CanExtend() bool {
	return r.Status == RentalStatusActive || r.Status == RentalStatusConfirmed
}

// RentalFilter narrows rental listings
type RentalFilter struct {
	UserID string // empty lists every user's rentals
	Status RentalStatus
	Page   int
	Limit  int
}
