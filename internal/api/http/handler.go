package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/service"
	"musicstore-backend/internal/utils"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// RentalHandler serves the equipment catalog, quotes and rentals
type RentalHandler struct {
	catalog  service.CatalogService
	quotes   service.QuoteService
	rentals  service.RentalService
	validate *validator.Validate
	errorResponder
}

func NewRentalHandler(catalog service.CatalogService, quotes service.QuoteService, rentals service.RentalService, exposeInternalErrors bool) *RentalHandler {
	return &RentalHandler{
		catalog:        catalog,
		quotes:         quotes,
		rentals:        rentals,
		validate:       newValidator(),
		errorResponder: errorResponder{exposeInternal: exposeInternalErrors},
	}
}

// decode reads and validates a JSON body. On failure it writes the 400 response and returns false.
func (h *RentalHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON payload", map[string]interface{}{
			"errors": map[string]string{"body": err.Error()},
		})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			h.writeError(w, r, err)
			return false
		}
		writeFailure(w, http.StatusBadRequest, "validation failed", map[string]interface{}{"errors": fieldErrors(verrs)})
		return false
	}
	return true
}

// parsePeriod parses both dates, reporting every malformed one
func parsePeriod(start, end string) (time.Time, time.Time, map[string]string) {
	errs := make(map[string]string)
	startDate, err := utils.ParseDate(start)
	if err != nil {
		errs["startDate"] = err.Error()
	}
	endDate, err := utils.ParseDate(end)
	if err != nil {
		errs["endDate"] = err.Error()
	}
	if len(errs) > 0 {
		return time.Time{}, time.Time{}, errs
	}
	return startDate, endDate, nil
}

func writeFieldErrors(w http.ResponseWriter, errs map[string]string) {
	writeFailure(w, http.StatusBadRequest, "validation failed", map[string]interface{}{"errors": errs})
}

// ListEquipment handles GET /api/rentals/equipment
func (h *RentalHandler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.EquipmentFilter{
		Category: q.Get("category"),
		Page:     atoiOr(q.Get("page"), 0),
		Limit:    atoiOr(q.Get("limit"), 0),
	}

	start, end := q.Get("startDate"), q.Get("endDate")
	if start != "" || end != "" {
		startDate, endDate, errs := parsePeriod(start, end)
		if errs != nil {
			writeFieldErrors(w, errs)
			return
		}
		filter.Period = &domain.Period{StartDate: startDate, EndDate: endDate}
	}

	items, total, err := h.catalog.ListEquipment(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, limit := service.NormalizePage(filter.Page, filter.Limit)
	writeSuccess(w, http.StatusOK, EquipmentListResponse{
		Items:        items,
		ListResponse: ListResponse{Page: page, Limit: limit, Total: total},
	})
}

// Quote handles POST /api/rentals/quote
func (h *RentalHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	startDate, endDate, errs := parsePeriod(req.StartDate, req.EndDate)
	if errs != nil {
		writeFieldErrors(w, errs)
		return
	}

	res, err := h.quotes.Quote(r.Context(), domain.QuoteRequest{
		Equipment:        toEquipmentRequests(req.Equipment),
		StartDate:        startDate,
		EndDate:          endDate,
		DeliveryRequired: req.DeliveryRequired,
		Address:          req.Address,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.Available() {
		writeFailure(w, http.StatusBadRequest, "some equipment is not available for the requested period",
			map[string]interface{}{"unavailableItems": res.UnavailableItems})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"quote": res.Quote})
}

// CreateRental handles POST /api/rentals
func (h *RentalHandler) CreateRental(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	var req CreateRentalRequest
	if !h.decode(w, r, &req) {
		return
	}
	startDate, endDate, errs := parsePeriod(req.StartDate, req.EndDate)
	if errs != nil {
		writeFieldErrors(w, errs)
		return
	}

	res, err := h.rentals.CreateRental(r.Context(), domain.CreateRentalRequest{
		UserID:           caller.UserID,
		ContactEmail:     caller.Email,
		Equipment:        toEquipmentRequests(req.Equipment),
		StartDate:        startDate,
		EndDate:          endDate,
		DeliveryRequired: req.DeliveryRequired,
		Address:          req.Address,
		Notes:            req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(res.Conflicts) > 0 {
		writeFailure(w, http.StatusBadRequest, "some equipment is not available for the requested period",
			map[string]interface{}{"conflicts": res.Conflicts})
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{"rental": res.Rental})
}

// ListRentals handles GET /api/rentals
func (h *RentalHandler) ListRentals(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	q := r.URL.Query()

	filter := domain.RentalFilter{
		UserID: q.Get("userId"),
		Page:   atoiOr(q.Get("page"), 0),
		Limit:  atoiOr(q.Get("limit"), 0),
	}
	if s := q.Get("status"); s != "" {
		status, err := domain.ParseRentalStatus(s)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Status = status
	}

	rentals, total, err := h.rentals.ListRentals(r.Context(), caller, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, limit := service.NormalizePage(filter.Page, filter.Limit)
	if rentals == nil {
		rentals = []domain.Rental{}
	}
	writeSuccess(w, http.StatusOK, RentalListResponse{
		Rentals:      rentals,
		ListResponse: ListResponse{Page: page, Limit: limit, Total: total},
	})
}

// GetRental handles GET /api/rentals/{id}
func (h *RentalHandler) GetRental(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	rental, err := h.rentals.GetRental(r.Context(), caller, rentalID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"rental": rental})
}

// ExtendRental handles PUT /api/rentals/{id}/extend
func (h *RentalHandler) ExtendRental(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	var req ExtendRentalRequest
	if !h.decode(w, r, &req) {
		return
	}
	newEnd, err := utils.ParseDate(req.NewEndDate)
	if err != nil {
		writeFieldErrors(w, map[string]string{"newEndDate": err.Error()})
		return
	}

	res, err := h.rentals.ExtendRental(r.Context(), caller, rentalID(r), newEnd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(res.Conflicts) > 0 {
		writeFailure(w, http.StatusBadRequest, "some equipment is not available for the extended period",
			map[string]interface{}{"conflicts": res.Conflicts})
		return
	}
	writeSuccess(w, http.StatusOK, ExtendRentalResponse{
		Rental:         res.Rental,
		AdditionalDays: res.AdditionalDays,
		AdditionalCost: res.AdditionalCost,
	})
}

// CancelRental handles PUT /api/rentals/{id}/cancel
func (h *RentalHandler) CancelRental(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	var req CancelRentalRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	rental, err := h.rentals.CancelRental(r.Context(), caller, rentalID(r), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"rental": rental})
}

// UpdateStatus handles PUT /api/rentals/{id}/status
func (h *RentalHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := domain.ParseRentalStatus(req.Status)
	if err != nil {
		writeFieldErrors(w, map[string]string{"status": err.Error()})
		return
	}

	rental, err := h.rentals.UpdateStatus(r.Context(), caller, rentalID(r), status, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"rental": rental})
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
