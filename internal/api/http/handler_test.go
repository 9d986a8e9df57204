package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/security"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	router  http.Handler
	catalog *MockCatalogService
	quotes  *MockQuoteService
	rentals *MockRentalService
	store   *MockPinger
	tokens  security.TokenManager
}

func newTestServer(exposeInternal bool) *testServer {
	s := &testServer{
		catalog: new(MockCatalogService),
		quotes:  new(MockQuoteService),
		rentals: new(MockRentalService),
		store:   new(MockPinger),
		tokens:  security.NewTokenManager(testSecret),
	}
	h := NewRentalHandler(s.catalog, s.quotes, s.rentals, exposeInternal)
	s.router = NewRouter(h, s.tokens, s.store)
	return s
}

func (s *testServer) token(t *testing.T, userID, email string, role domain.Role) string {
	token, err := s.tokens.GenerateAccessToken(userID, email, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var envelope map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

func data(t *testing.T, envelope map[string]interface{}) map[string]interface{} {
	d, ok := envelope["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", envelope)
	return d
}

func june(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestHealth(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		s := newTestServer(false)
		s.store.On("Ping", mock.Anything).Return(nil)

		rec, body := s.do(t, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "healthy", data(t, body)["status"])
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	})

	t.Run("Database Down", func(t *testing.T) {
		s := newTestServer(false)
		s.store.On("Ping", mock.Anything).Return(errors.New("connection refused"))

		rec, body := s.do(t, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, false, body["success"])
	})
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(false)
	s.store.On("Ping", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestListEquipment(t *testing.T) {
	s := newTestServer(false)
	available := 2
	s.catalog.On("ListEquipment", mock.Anything, domain.EquipmentFilter{
		Category: "amplifiers",
		Page:     2,
		Limit:    500,
		Period:   &domain.Period{StartDate: june(1), EndDate: june(4)},
	}).Return([]domain.EquipmentItem{{
		Product:        domain.Product{ID: "P", Name: "Guitar Amp", Stock: 10, IsForRental: true},
		AvailableStock: &available,
	}}, 101, nil)

	rec, body := s.do(t, http.MethodGet, "/api/rentals/equipment?category=amplifiers&page=2&limit=500&startDate=2024-06-01&endDate=2024-06-04", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, body)
	assert.Equal(t, float64(2), d["page"])
	assert.Equal(t, float64(100), d["limit"])
	assert.Equal(t, float64(101), d["total"])
	items := d["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, float64(2), items[0].(map[string]interface{})["availableStock"])
}

func TestQuote(t *testing.T) {
	body := `{"equipment":[{"productId":"P","quantity":3}],"startDate":"2024-06-01","endDate":"2024-06-04"}`

	t.Run("Quoted", func(t *testing.T) {
		s := newTestServer(false)
		s.quotes.On("Quote", mock.Anything, domain.QuoteRequest{
			Equipment: []domain.EquipmentRequest{{ProductID: "P", Quantity: 3}},
			StartDate: june(1),
			EndDate:   june(4),
		}).Return(&domain.QuoteResult{Quote: &domain.Quote{
			Pricing: domain.QuotePricing{
				Subtotal:    decimal.NewFromInt(180),
				TotalAmount: decimal.NewFromInt(180),
				Deposit:     decimal.NewFromInt(54),
			},
			TotalDays: 3,
		}}, nil)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals/quote", body, "")
		require.Equal(t, http.StatusOK, rec.Code)
		quote := data(t, resp)["quote"].(map[string]interface{})
		pricing := quote["pricing"].(map[string]interface{})
		assert.Equal(t, float64(180), pricing["totalAmount"])
		assert.Equal(t, float64(54), pricing["deposit"])
		assert.Equal(t, float64(3), quote["totalDays"])
	})

	t.Run("Unavailable", func(t *testing.T) {
		s := newTestServer(false)
		s.quotes.On("Quote", mock.Anything, mock.Anything).Return(&domain.QuoteResult{
			UnavailableItems: []domain.UnavailableItem{{
				ProductID: "P", Reason: domain.UnavailableReasonInsufficient, Requested: 3, Available: 2,
			}},
		}, nil)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals/quote", body, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, resp["success"])
		items := data(t, resp)["unavailableItems"].([]interface{})
		require.Len(t, items, 1)
		assert.Equal(t, float64(2), items[0].(map[string]interface{})["available"])
	})

	t.Run("Field Errors", func(t *testing.T) {
		s := newTestServer(false)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals/quote",
			`{"equipment":[{"productId":"P","quantity":0}],"startDate":"2024-06-01","deliveryRequired":true}`, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		errs := data(t, resp)["errors"].(map[string]interface{})
		assert.Contains(t, errs, "equipment[0].quantity")
		assert.Contains(t, errs, "endDate")
		assert.NotContains(t, errs, "address")
		s.quotes.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	})

	t.Run("Delivery Priced Without Address", func(t *testing.T) {
		s := newTestServer(false)
		s.quotes.On("Quote", mock.Anything, domain.QuoteRequest{
			Equipment:        []domain.EquipmentRequest{{ProductID: "P", Quantity: 3}},
			StartDate:        june(1),
			EndDate:          june(4),
			DeliveryRequired: true,
		}).Return(&domain.QuoteResult{Quote: &domain.Quote{
			Pricing: domain.QuotePricing{
				Subtotal:    decimal.NewFromInt(180),
				DeliveryFee: decimal.NewFromInt(25),
				TotalAmount: decimal.NewFromInt(205),
			},
		}}, nil)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals/quote",
			`{"equipment":[{"productId":"P","quantity":3}],"startDate":"2024-06-01","endDate":"2024-06-04","deliveryRequired":true}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		pricing := data(t, resp)["quote"].(map[string]interface{})["pricing"].(map[string]interface{})
		assert.Equal(t, float64(25), pricing["deliveryFee"])
	})

	t.Run("Quantity Above Limit", func(t *testing.T) {
		s := newTestServer(false)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals/quote",
			`{"equipment":[{"productId":"P","quantity":9223372036854775807}],"startDate":"2024-06-01","endDate":"2024-06-04"}`, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		errs := data(t, resp)["errors"].(map[string]interface{})
		assert.Equal(t, "must be at most 10000", errs["equipment[0].quantity"])
		s.quotes.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	})

	t.Run("Bad Date", func(t *testing.T) {
		s := newTestServer(false)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals/quote",
			`{"equipment":[{"productId":"P","quantity":1}],"startDate":"01/06/2024","endDate":"2024-06-04"}`, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		errs := data(t, resp)["errors"].(map[string]interface{})
		assert.Contains(t, errs["startDate"], "invalid date format")
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		s := newTestServer(false)

		rec, _ := s.do(t, http.MethodPost, "/api/rentals/quote", `{"equipment":`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateRental(t *testing.T) {
	body := `{"equipment":[{"productId":"P","quantity":3}],"startDate":"2024-06-01","endDate":"2024-06-04T00:00:00Z","notes":"gig"}`

	t.Run("Requires Token", func(t *testing.T) {
		s := newTestServer(false)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals", body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, false, resp["success"])

		rec, _ = s.do(t, http.MethodPost, "/api/rentals", body, "garbage")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Created", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("CreateRental", mock.Anything, domain.CreateRentalRequest{
			UserID:       "user-1",
			ContactEmail: "jane@example.com",
			Equipment:    []domain.EquipmentRequest{{ProductID: "P", Quantity: 3}},
			StartDate:    june(1),
			EndDate:      june(4),
			Notes:        "gig",
		}).Return(&domain.CreateRentalResult{Rental: &domain.Rental{
			ID: "r-1", RentalNumber: "ALQ240520001", Status: domain.RentalStatusPending,
		}}, nil)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals", body, s.token(t, "user-1", "jane@example.com", domain.RoleUser))
		require.Equal(t, http.StatusCreated, rec.Code)
		rental := data(t, resp)["rental"].(map[string]interface{})
		assert.Equal(t, "ALQ240520001", rental["rentalNumber"])
		assert.Equal(t, "pending", rental["status"])
	})

	t.Run("Conflicts", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("CreateRental", mock.Anything, mock.Anything).Return(&domain.CreateRentalResult{
			Conflicts: []domain.UnavailableItem{{ProductID: "P", Requested: 3, Available: 2, Reason: domain.UnavailableReasonInsufficient}},
		}, nil)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals", body, s.token(t, "user-1", "", domain.RoleUser))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Len(t, data(t, resp)["conflicts"], 1)
	})

	t.Run("Delivery Requires Address", func(t *testing.T) {
		s := newTestServer(false)

		rec, resp := s.do(t, http.MethodPost, "/api/rentals",
			`{"equipment":[{"productId":"P","quantity":3}],"startDate":"2024-06-01","endDate":"2024-06-04","deliveryRequired":true}`,
			s.token(t, "user-1", "", domain.RoleUser))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		errs := data(t, resp)["errors"].(map[string]interface{})
		assert.Equal(t, "is required when delivery is requested", errs["address"])
		s.rentals.AssertNotCalled(t, "CreateRental", mock.Anything, mock.Anything)
	})

	t.Run("Contended", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("CreateRental", mock.Anything, mock.Anything).Return(nil, &domain.AppError{
			Type:    domain.ErrorTypeConflict,
			Message: "another reservation for the same equipment is in progress, please retry",
			Err:     domain.ErrReservationContended,
		})

		rec, resp := s.do(t, http.MethodPost, "/api/rentals", body, s.token(t, "user-1", "", domain.RoleUser))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, resp["message"], "please retry")
	})
}

func TestRentalReads(t *testing.T) {
	user := domain.Caller{UserID: "user-1", Email: "jane@example.com", Role: domain.RoleUser}

	t.Run("Get Forbidden And Not Found", func(t *testing.T) {
		s := newTestServer(false)
		token := s.token(t, user.UserID, user.Email, domain.RoleUser)
		s.rentals.On("GetRental", mock.Anything, user, "r-2").Return(nil, domain.NewForbidden("you do not have access to this rental"))
		s.rentals.On("GetRental", mock.Anything, user, "r-404").Return(nil, domain.NotFoundFrom(domain.ErrRentalNotFound, "r-404"))
		s.rentals.On("GetRental", mock.Anything, user, "r-1").Return(&domain.Rental{ID: "r-1"}, nil)

		rec, _ := s.do(t, http.MethodGet, "/api/rentals/r-2", "", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec, _ = s.do(t, http.MethodGet, "/api/rentals/r-404", "", token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec, _ = s.do(t, http.MethodGet, "/api/rentals/r-1", "", token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("List", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("ListRentals", mock.Anything, user, domain.RentalFilter{Status: domain.RentalStatusActive, Page: 1, Limit: 10}).
			Return([]domain.Rental{{ID: "r-1"}}, 1, nil)

		rec, resp := s.do(t, http.MethodGet, "/api/rentals?status=active&page=1&limit=10", "", s.token(t, user.UserID, user.Email, domain.RoleUser))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, data(t, resp)["rentals"], 1)
		assert.Equal(t, float64(1), data(t, resp)["total"])
	})

	t.Run("List Unknown Status", func(t *testing.T) {
		s := newTestServer(false)

		rec, _ := s.do(t, http.MethodGet, "/api/rentals?status=lost", "", s.token(t, user.UserID, user.Email, domain.RoleUser))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRentalWrites(t *testing.T) {
	user := domain.Caller{UserID: "user-1", Email: "jane@example.com", Role: domain.RoleUser}
	staff := domain.Caller{UserID: "admin-1", Email: "staff@example.com", Role: domain.RoleAdmin}

	t.Run("Extend", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("ExtendRental", mock.Anything, user, "r-1", june(6)).Return(&domain.ExtensionResult{
			Rental:         &domain.Rental{ID: "r-1"},
			AdditionalDays: 2,
			AdditionalCost: decimal.NewFromInt(120),
		}, nil)

		rec, resp := s.do(t, http.MethodPut, "/api/rentals/r-1/extend", `{"newEndDate":"2024-06-06"}`, s.token(t, user.UserID, user.Email, domain.RoleUser))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(120), data(t, resp)["additionalCost"])
		assert.Equal(t, float64(2), data(t, resp)["additionalDays"])
	})

	t.Run("Extend Conflicts", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("ExtendRental", mock.Anything, user, "r-1", june(6)).Return(&domain.ExtensionResult{
			Conflicts: []domain.UnavailableItem{{ProductID: "P", Requested: 3, Available: 2}},
		}, nil)

		rec, resp := s.do(t, http.MethodPut, "/api/rentals/r-1/extend", `{"newEndDate":"2024-06-06"}`, s.token(t, user.UserID, user.Email, domain.RoleUser))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Len(t, data(t, resp)["conflicts"], 1)
	})

	t.Run("Cancel", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("CancelRental", mock.Anything, user, "r-1", "changed plans").
			Return(&domain.Rental{ID: "r-1", Status: domain.RentalStatusCancelled}, nil)

		rec, resp := s.do(t, http.MethodPut, "/api/rentals/r-1/cancel", `{"reason":"changed plans"}`, s.token(t, user.UserID, user.Email, domain.RoleUser))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cancelled", data(t, resp)["rental"].(map[string]interface{})["status"])
	})

	t.Run("Cancel Of A Rental Changed Meanwhile", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("CancelRental", mock.Anything, user, "r-1", "").Return(nil, domain.StaleFrom("r-1"))

		rec, resp := s.do(t, http.MethodPut, "/api/rentals/r-1/cancel", "", s.token(t, user.UserID, user.Email, domain.RoleUser))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, resp["message"], "reload and retry")
	})

	t.Run("Invalid Transition", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("CancelRental", mock.Anything, user, "r-1", "").Return(nil, &domain.AppError{
			Type:    domain.ErrorTypeValidation,
			Message: "cannot change rental status from completed to cancelled",
			Err:     domain.ErrInvalidTransition,
		})

		rec, resp := s.do(t, http.MethodPut, "/api/rentals/r-1/cancel", "", s.token(t, user.UserID, user.Email, domain.RoleUser))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "cannot change rental status from completed to cancelled", resp["message"])
	})

	t.Run("Status Requires Admin", func(t *testing.T) {
		s := newTestServer(false)

		rec, _ := s.do(t, http.MethodPut, "/api/rentals/r-1/status", `{"status":"confirmed"}`, s.token(t, user.UserID, user.Email, domain.RoleUser))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		s.rentals.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Admin Updates Status", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("UpdateStatus", mock.Anything, staff, "r-1", domain.RentalStatusConfirmed, "paid").
			Return(&domain.Rental{ID: "r-1", Status: domain.RentalStatusConfirmed}, nil)

		rec, _ := s.do(t, http.MethodPut, "/api/rentals/r-1/status", `{"status":"confirmed","note":"paid"}`, s.token(t, staff.UserID, staff.Email, domain.RoleAdmin))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Unknown Status Value", func(t *testing.T) {
		s := newTestServer(false)

		rec, resp := s.do(t, http.MethodPut, "/api/rentals/r-1/status", `{"status":"lost"}`, s.token(t, staff.UserID, staff.Email, domain.RoleAdmin))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, data(t, resp)["errors"], "status")
	})
}

func TestInternalErrors(t *testing.T) {
	user := domain.Caller{UserID: "user-1", Role: domain.RoleUser}

	t.Run("Production Hides Details", func(t *testing.T) {
		s := newTestServer(false)
		s.rentals.On("GetRental", mock.Anything, user, "r-1").Return(nil, errors.New("pq: connection reset"))

		rec, resp := s.do(t, http.MethodGet, "/api/rentals/r-1", "", s.token(t, user.UserID, "", domain.RoleUser))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", resp["message"])
		assert.Nil(t, resp["data"])
	})

	t.Run("Development Shows Details", func(t *testing.T) {
		s := newTestServer(true)
		s.rentals.On("GetRental", mock.Anything, user, "r-1").Return(nil, errors.New("pq: connection reset"))

		rec, resp := s.do(t, http.MethodGet, "/api/rentals/r-1", "", s.token(t, user.UserID, "", domain.RoleUser))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "pq: connection reset", data(t, resp)["error"])
	})
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(false)

	rec, resp := s.do(t, http.MethodGet, "/api/nothing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, resp["success"])
}
