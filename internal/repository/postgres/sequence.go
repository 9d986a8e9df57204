package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"
)

type sequenceRepository struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) repository.SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next increments the counter of dayKey in a single statement, so concurrent callers never share a value
func (r *sequenceRepository) Next(ctx context.Context, dayKey string) (int64, error) {
	query := `INSERT INTO rental_sequences (day_key, value) VALUES ($1, 1)
	          ON CONFLICT (day_key) DO UPDATE SET value = rental_sequences.value + 1
	          RETURNING value`
	logger.DatabaseCall("UPSERT", "rental_sequences", "dayKey", dayKey)

	var value int64
	err := r.db.QueryRowContext(ctx, query, dayKey).Scan(&value)
	logger.DatabaseResult("UPSERT", 1, err, "dayKey", dayKey, "value", value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance rental sequence %s: %w", dayKey, err)
	}
	return value, nil
}
