package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity bounds the units of one product a single request may ask for, across all of its lines
const MaxLineQuantity = 10000

// EquipmentRequest is one requested (product, quantity) pair
type EquipmentRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type QuoteRequest struct {
	Equipment        []EquipmentRequest
	StartDate        time.Time
	EndDate          time.Time
	DeliveryRequired bool
	Address          string
}

type QuotePricing struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	SetupFee    decimal.Decimal `json:"setupFee"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Deposit     decimal.Decimal `json:"deposit"`
}

// Quote is never persisted. ValidUntil is informational.
type Quote struct {
	EquipmentItems []EquipmentLine `json:"equipmentItems"`
	Pricing        QuotePricing    `json:"pricing"`
	RentalPeriod   Period          `json:"rentalPeriod"`
	TotalDays      int             `json:"totalDays"`
	ValidUntil     time.Time       `json:"validUntil"`
}

// UnavailableItem explains why a requested line cannot be served
type UnavailableItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Reason      string `json:"reason"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

const (
	UnavailableReasonNotFound     = "product not found"
	UnavailableReasonNotForRental = "product is not available for rental"
	UnavailableReasonInsufficient = "insufficient stock for the requested period"
)

// QuoteResult carries either a quote or the complete list of unavailable lines
type QuoteResult struct {
	Quote            *Quote
	UnavailableItems []UnavailableItem
}

// Available reports whether every requested line could be served
func (r *QuoteResult) Available() bool {
	return len(r.UnavailableItems) == 0
}

// CreateRentalRequest is the payload for a new reservation
type CreateRentalRequest struct {
	UserID           string
	ContactEmail     string
	Equipment        []EquipmentRequest
	StartDate        time.Time
	EndDate          time.Time
	DeliveryRequired bool
	Address          string
	Notes            string
}

// CreateRentalResult carries either the created rental or the conflicting lines
type CreateRentalResult struct {
	Rental    *Rental
	Conflicts []UnavailableItem
}

// ExtensionResult carries either the extended rental or the lines that block the extension
type ExtensionResult struct {
	Rental         *Rental
	AdditionalDays int
	AdditionalCost decimal.Decimal
	Conflicts      []UnavailableItem
}
