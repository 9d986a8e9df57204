package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"musicstore-backend/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rentalColumnNames = []string{
	"id", "rental_number", "user_id", "status", "start_date", "end_date", "actual_start_date", "actual_end_date",
	"equipment", "subtotal", "discount_amount", "delivery_fee", "setup_fee", "late_fee", "damage_fee", "total_amount",
	"delivery_required", "delivery_address", "notes", "contact_email", "status_history", "created_at", "updated_at",
}

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func rentalRow(rows *sqlmock.Rows, id, status string) *sqlmock.Rows {
	return rows.AddRow(
		id, "ALQ240601001", "user-1", status, day(2), day(5), nil, nil,
		[]byte(`[{"productId":"p1","productName":"Stage Piano","quantity":8,"dailyRate":20,"totalDays":3,"subtotal":480}]`),
		"480.00", "0", "0", "0", "0", "0", "480.00",
		false, "", "", "customer@example.com", []byte(`[{"status":"pending","date":"2024-06-01T00:00:00Z"}]`), day(1), day(1),
	)
}

func TestProductRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewProductRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "stock", "is_for_rental", "daily_rate", "created_at", "updated_at"}).
				AddRow("p1", "Stage Piano", "keyboards", 10, true, "20.00", day(1), day(1)))

		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Stage Piano", p.Name)
		assert.Equal(t, 10, p.Stock)
		assert.True(t, decimal.NewFromInt(20).Equal(p.RentalPrice.Daily))
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByID(ctx, "missing")
		assert.True(t, domain.IsNotFound(err))
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ListRentable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewProductRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM \\(SELECT (.+) FROM products WHERE is_for_rental = TRUE AND category = \\$1\\) as sub").
		WithArgs("guitars").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery("SELECT (.+) FROM products WHERE is_for_rental = TRUE AND category = \\$1 ORDER BY name ASC, id ASC LIMIT \\$2 OFFSET \\$3").
		WithArgs("guitars", 20, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "stock", "is_for_rental", "daily_rate", "created_at", "updated_at"}).
			AddRow("g21", "Bass Amp", "guitars", 2, true, "15.50", day(1), day(1)))

	products, total, err := repo.ListRentable(context.Background(), "guitars", 2, 20)
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, products, 1)
	assert.Equal(t, "g21", products[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	rt := &domain.Rental{
		ID:           "r-1",
		RentalNumber: "ALQ240601001",
		UserID:       "user-1",
		Status:       domain.RentalStatusPending,
		RentalPeriod: domain.RentalPeriod{StartDate: day(1), EndDate: day(4)},
		Equipment:    []domain.EquipmentLine{{ProductID: "p1", Quantity: 3, DailyRate: decimal.NewFromInt(20), TotalDays: 3, Subtotal: decimal.NewFromInt(180)}},
		CreatedAt:    day(1),
		UpdatedAt:    day(1),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rentals (")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), rt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	ctx := context.Background()

	t.Run("Decodes JSON columns", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM rentals WHERE id = \\$1").
			WithArgs("r-1").
			WillReturnRows(rentalRow(sqlmock.NewRows(rentalColumnNames), "r-1", "confirmed"))

		rt, err := repo.GetByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusConfirmed, rt.Status)
		require.Len(t, rt.Equipment, 1)
		assert.Equal(t, 8, rt.Equipment[0].Quantity)
		assert.True(t, decimal.NewFromInt(20).Equal(rt.Equipment[0].DailyRate))
		require.Len(t, rt.StatusHistory, 1)
		assert.Nil(t, rt.RentalPeriod.ActualStartDate)
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM rentals WHERE id = \\$1").
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(rentalColumnNames))

		_, err := repo.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrRentalNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	rt := &domain.Rental{ID: "r-1", Status: domain.RentalStatusCancelled, UpdatedAt: day(2)}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("(?s)UPDATE rentals SET status=\\$1.+WHERE id=\\$16 AND updated_at=\\$17").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.Update(context.Background(), rt, day(1)))
	})

	t.Run("Missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE rentals SET status=\\$1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("r-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		err := repo.Update(context.Background(), rt, day(1))
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Written since loaded", func(t *testing.T) {
		mock.ExpectExec("UPDATE rentals SET status=\\$1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("r-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		err := repo.Update(context.Background(), rt, day(1))
		assert.ErrorIs(t, err, domain.ErrStaleRental)
		assert.True(t, domain.IsConflict(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM \\(SELECT (.+) FROM rentals WHERE 1=1 AND user_id = \\$1 AND status = \\$2\\) as sub").
		WithArgs("user-1", "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM rentals WHERE 1=1 AND user_id = \\$1 AND status = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("user-1", "confirmed", 10, 0).
		WillReturnRows(rentalRow(sqlmock.NewRows(rentalColumnNames), "r-1", "confirmed"))

	rentals, total, err := repo.List(context.Background(), domain.RentalFilter{
		UserID: "user-1", Status: domain.RentalStatusConfirmed, Page: 1, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rentals, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_ListHolding(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	period := domain.Period{StartDate: day(1), EndDate: day(4)}

	mock.ExpectQuery("SELECT (.+) FROM rentals\\s+WHERE status = ANY\\(\\$1\\) AND start_date <= \\$2 AND end_date >= \\$3 AND id <> \\$4 AND equipment @> \\$5::jsonb").
		WithArgs(sqlmock.AnyArg(), day(4), day(1), "r-self", `[{"productId":"p1"}]`).
		WillReturnRows(rentalRow(sqlmock.NewRows(rentalColumnNames), "r-2", "confirmed"))

	rentals, err := repo.ListHolding(context.Background(), "p1", period, "r-self")
	require.NoError(t, err)
	require.Len(t, rentals, 1)
	assert.Equal(t, "r-2", rentals[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepository_Next(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewSequenceRepository(db)

	mock.ExpectQuery("INSERT INTO rental_sequences (.+) ON CONFLICT \\(day_key\\) DO UPDATE").
		WithArgs("240601").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(7)))

	seq, err := repo.Next(context.Background(), "240601")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}
