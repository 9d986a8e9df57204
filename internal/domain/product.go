package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Monetary fields go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// RentalPrice holds the rental tariffs of a product
type RentalPrice struct {
	Daily decimal.Decimal `json:"daily"`
}

// Product is a catalog item. Only products with IsForRental set take part in rentals.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Stock       int         `json:"stock"`
	IsForRental bool        `json:"isForRental"`
	RentalPrice RentalPrice `json:"rentalPrice"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// EquipmentFilter narrows the rentable product listing
type EquipmentFilter struct {
	Category string
	Page     int
	Limit    int
	// Period is optional; when set every listed item carries its available stock.
	Period *Period
}

// EquipmentItem is a rentable product as listed to customers
type EquipmentItem struct {
	Product
	AvailableStock *int `json:"availableStock,omitempty"`
}
