package http

import (
	"fmt"
	"reflect"
	"strings"

	"musicstore-backend/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type EquipmentLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10000"`
}

// QuoteRequest prices delivery without needing an address; only booking requires one
type QuoteRequest struct {
	Equipment        []EquipmentLineRequest `json:"equipment" validate:"required,min=1,dive"`
	StartDate        string                 `json:"startDate" validate:"required"`
	EndDate          string                 `json:"endDate" validate:"required"`
	DeliveryRequired bool                   `json:"deliveryRequired"`
	Address          string                 `json:"address" validate:"max=500"`
}

type CreateRentalRequest struct {
	Equipment        []EquipmentLineRequest `json:"equipment" validate:"required,min=1,dive"`
	StartDate        string                 `json:"startDate" validate:"required"`
	EndDate          string                 `json:"endDate" validate:"required"`
	DeliveryRequired bool                   `json:"deliveryRequired"`
	Address          string                 `json:"address" validate:"required_if=DeliveryRequired true,max=500"`
	Notes            string                 `json:"notes" validate:"max=1000"`
}

type ExtendRentalRequest struct {
	NewEndDate string `json:"newEndDate" validate:"required"`
}

type CancelRentalRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

type ListResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type EquipmentListResponse struct {
	Items []domain.EquipmentItem `json:"items"`
	ListResponse
}

type RentalListResponse struct {
	Rentals []domain.Rental `json:"rentals"`
	ListResponse
}

type ExtendRentalResponse struct {
	Rental         *domain.Rental  `json:"rental"`
	AdditionalDays int             `json:"additionalDays"`
	AdditionalCost decimal.Decimal `json:"additionalCost"`
}

func toEquipmentRequests(lines []EquipmentLineRequest) []domain.EquipmentRequest {
	out := make([]domain.EquipmentRequest, 0, len(lines))
	for _, line := range lines {
		out = append(out, domain.EquipmentRequest{ProductID: strings.TrimSpace(line.ProductID), Quantity: line.Quantity})
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors turns validator output into {field: message}, keyed by the JSON path
func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out[field] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when delivery is requested"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
