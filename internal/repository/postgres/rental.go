package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"

	"github.com/lib/pq"
)

const rentalColumns = `id, rental_number, user_id, status, start_date, end_date, actual_start_date, actual_end_date,
	equipment, subtotal, discount_amount, delivery_fee, setup_fee, late_fee, damage_fee, total_amount,
	delivery_required, delivery_address, notes, contact_email, status_history, created_at, updated_at`

type rentalRepository struct {
	db *sql.DB
}

func NewRentalRepository(db *sql.DB) repository.RentalRepository {
	return &rentalRepository{db: db}
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	equipment, history, err := marshalRentalJSON(rt)
	if err != nil {
		return err
	}

	query := `INSERT INTO rentals (` + rentalColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`
	logger.DatabaseCall("INSERT", "rentals", "rentalID", rt.ID, "rentalNumber", rt.RentalNumber)

	_, err = r.db.ExecContext(ctx, query,
		rt.ID, rt.RentalNumber, rt.UserID, rt.Status,
		rt.RentalPeriod.StartDate, rt.RentalPeriod.EndDate, rt.RentalPeriod.ActualStartDate, rt.RentalPeriod.ActualEndDate,
		equipment,
		rt.Pricing.Subtotal, rt.Pricing.DiscountAmount, rt.Pricing.DeliveryFee, rt.Pricing.SetupFee,
		rt.Pricing.LateFee, rt.Pricing.DamageFee, rt.Pricing.TotalAmount,
		rt.Delivery.Required, rt.Delivery.Address, rt.Notes, rt.ContactEmail, history, rt.CreatedAt, rt.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "rentalID", rt.ID)
	if err != nil {
		return fmt.Errorf("failed to insert rental: %w", err)
	}
	return nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id string) (*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	logger.DatabaseCall("SELECT", "rentals", "rentalID", id)

	rt, err := scanRental(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		logger.DatabaseResult("SELECT", 0, nil, "rentalID", id)
		return nil, domain.NotFoundFrom(domain.ErrRentalNotFound, id)
	}
	logger.DatabaseResult("SELECT", 1, err, "rentalID", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get rental %s: %w", id, err)
	}
	return rt, nil
}

func (r *rentalRepository) Update(ctx context.Context, rt *domain.Rental, expectedUpdatedAt time.Time) error {
	equipment, history, err := marshalRentalJSON(rt)
	if err != nil {
		return err
	}

	query := `UPDATE rentals SET status=$1, end_date=$2, actual_start_date=$3, actual_end_date=$4, equipment=$5,
	          subtotal=$6, discount_amount=$7, delivery_fee=$8, setup_fee=$9, late_fee=$10, damage_fee=$11, total_amount=$12,
	          notes=$13, status_history=$14, updated_at=$15
	          WHERE id=$16 AND updated_at=$17`
	logger.DatabaseCall("UPDATE", "rentals", "rentalID", rt.ID, "status", rt.Status)

	res, err := r.db.ExecContext(ctx, query,
		rt.Status, rt.RentalPeriod.EndDate, rt.RentalPeriod.ActualStartDate, rt.RentalPeriod.ActualEndDate, equipment,
		rt.Pricing.Subtotal, rt.Pricing.DiscountAmount, rt.Pricing.DeliveryFee, rt.Pricing.SetupFee,
		rt.Pricing.LateFee, rt.Pricing.DamageFee, rt.Pricing.TotalAmount,
		rt.Notes, history, rt.UpdatedAt, rt.ID, expectedUpdatedAt)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "rentalID", rt.ID)
		return fmt.Errorf("failed to update rental %s: %w", rt.ID, err)
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, nil, "rentalID", rt.ID)
	if n > 0 {
		return nil
	}

	// Nothing matched: either the rental is gone or someone else wrote it since it was read.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rentals WHERE id = $1)`, rt.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check rental %s: %w", rt.ID, err)
	}
	if !exists {
		return domain.NotFoundFrom(domain.ErrRentalNotFound, rt.ID)
	}
	return domain.StaleFrom(rt.ID)
}

func (r *rentalRepository) List(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int, error) {
	offset := (filter.Page - 1) * filter.Limit
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE 1=1`

	args := []interface{}{}
	argIdx := 1
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	var count int
	countQuery := "SELECT count(*) FROM (" + query + ") as sub"
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count rentals: %w", err)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rentals, err := r.queryRentals(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rentals, count, nil
}

func (r *rentalRepository) ListHolding(ctx context.Context, productID string, period domain.Period, excludeID string) ([]domain.Rental, error) {
	statuses := make([]string, len(domain.HoldingStatuses))
	for i, s := range domain.HoldingStatuses {
		statuses[i] = string(s)
	}
	containment, err := json.Marshal([]map[string]string{{"productId": productID}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode product filter: %w", err)
	}

	query := `SELECT ` + rentalColumns + ` FROM rentals
	          WHERE status = ANY($1) AND start_date <= $2 AND end_date >= $3 AND id <> $4 AND equipment @> $5::jsonb`
	return r.queryRentals(ctx, query, pq.Array(statuses), period.EndDate, period.StartDate, excludeID, string(containment))
}

func (r *rentalRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE status = $1 AND end_date < $2 ORDER BY end_date ASC`
	return r.queryRentals(ctx, query, domain.RentalStatusActive, asOf)
}

func (r *rentalRepository) queryRentals(ctx context.Context, query string, args ...interface{}) ([]domain.Rental, error) {
	logger.DatabaseCall("SELECT", "rentals", "args", len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	defer rows.Close()

	rentals := []domain.Rental{}
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		rentals = append(rentals, *rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rentals: %w", err)
	}
	logger.DatabaseResult("SELECT", int64(len(rentals)), nil)
	return rentals, nil
}

func scanRental(row rowScanner) (*domain.Rental, error) {
	rt := &domain.Rental{}
	var equipment, history []byte
	err := row.Scan(
		&rt.ID, &rt.RentalNumber, &rt.UserID, &rt.Status,
		&rt.RentalPeriod.StartDate, &rt.RentalPeriod.EndDate, &rt.RentalPeriod.ActualStartDate, &rt.RentalPeriod.ActualEndDate,
		&equipment,
		&rt.Pricing.Subtotal, &rt.Pricing.DiscountAmount, &rt.Pricing.DeliveryFee, &rt.Pricing.SetupFee,
		&rt.Pricing.LateFee, &rt.Pricing.DamageFee, &rt.Pricing.TotalAmount,
		&rt.Delivery.Required, &rt.Delivery.Address, &rt.Notes, &rt.ContactEmail, &history, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(equipment, &rt.Equipment); err != nil {
		return nil, fmt.Errorf("failed to decode equipment of rental %s: %w", rt.ID, err)
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &rt.StatusHistory); err != nil {
			return nil, fmt.Errorf("failed to decode status history of rental %s: %w", rt.ID, err)
		}
	}
	return rt, nil
}

func marshalRentalJSON(rt *domain.Rental) ([]byte, []byte, error) {
	equipment, err := json.Marshal(rt.Equipment)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode equipment: %w", err)
	}
	history, err := json.Marshal(rt.StatusHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode status history: %w", err)
	}
	return equipment, history, nil
}
