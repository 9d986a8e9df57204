// Package events publishes rental lifecycle events for downstream consumers
package events

import (
	"context"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeRentalCreated       = "rental.created"
	TypeRentalStatusChanged = "rental.status_changed"
	TypeRentalExtended      = "rental.extended"
)

type Event struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	OccurredAt     time.Time              `json:"occurredAt"`
	RentalID       string                 `json:"rentalId"`
	RentalNumber   string                 `json:"rentalNumber"`
	UserID         string                 `json:"userId"`
	Status         domain.RentalStatus    `json:"status"`
	PreviousStatus domain.RentalStatus    `json:"previousStatus,omitempty"`
	Period         domain.Period          `json:"period"`
	TotalAmount    decimal.Decimal        `json:"totalAmount"`
	Equipment      []domain.EquipmentLine `json:"equipment,omitempty"`
	Note           string                 `json:"note,omitempty"`
}

// Publisher delivers events. Publishing is best effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewRentalEvent snapshots the rental into an event of the given type
func NewRentalEvent(eventType string, rt *domain.Rental, at time.Time) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		OccurredAt:   at,
		RentalID:     rt.ID,
		RentalNumber: rt.RentalNumber,
		UserID:       rt.UserID,
		Status:       rt.Status,
		Period:       rt.RentalPeriod.Period(),
		TotalAmount:  rt.Pricing.TotalAmount,
		Equipment:    rt.Equipment,
	}
}

// LogPublisher only logs events; used when Kafka is disabled
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	logger.InfoContext(ctx, "Rental event", "type", event.Type, "eventID", event.ID, "rentalID", event.RentalID, "status", event.Status)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
