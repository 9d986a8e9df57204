package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingPolicy holds the fee rules applied to quotes and new rentals
type PricingPolicy struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	SetupFee              decimal.Decimal
	SetupLineThreshold    int
	DepositRate           decimal.Decimal
	QuoteValidity         time.Duration
}

// DefaultPricingPolicy returns the store's standard fee rules
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		DeliveryFee:           decimal.NewFromInt(25),
		FreeDeliveryThreshold: decimal.NewFromInt(200),
		SetupFee:              decimal.NewFromInt(50),
		SetupLineThreshold:    5,
		DepositRate:           decimal.RequireFromString("0.30"),
		QuoteValidity:         48 * time.Hour,
	}
}

// FeeBreakdown is the priced result of a set of lines
type FeeBreakdown struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	SetupFee    decimal.Decimal
	TotalAmount decimal.Decimal
	Deposit     decimal.Decimal
}

// LineSubtotal is dailyRate * quantity * days
func LineSubtotal(dailyRate decimal.Decimal, quantity, days int) decimal.Decimal {
	return dailyRate.Mul(decimal.NewFromInt(int64(quantity))).Mul(decimal.NewFromInt(int64(days)))
}

// Price applies the fee rules to a subtotal. lineCount is the number of requested lines,
// not the total quantity.
func (p PricingPolicy) Price(subtotal decimal.Decimal, lineCount int, deliveryRequired bool) FeeBreakdown {
	delivery := decimal.Zero
	if deliveryRequired && !subtotal.GreaterThan(p.FreeDeliveryThreshold) {
		delivery = p.DeliveryFee
	}

	setup := decimal.Zero
	if lineCount > p.SetupLineThreshold {
		setup = p.SetupFee
	}

	return FeeBreakdown{
		Subtotal:    subtotal,
		DeliveryFee: delivery,
		SetupFee:    setup,
		TotalAmount: subtotal.Add(delivery).Add(setup),
		Deposit:     p.Deposit(subtotal),
	}
}

// Deposit is round(rate * subtotal, 2)
func (p PricingPolicy) Deposit(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(p.DepositRate).Round(2)
}

// ExtensionCost is dailyTotal * additionalDays
func ExtensionCost(dailyTotal decimal.Decimal, additionalDays int) decimal.Decimal {
	return dailyTotal.Mul(decimal.NewFromInt(int64(additionalDays)))
}
