package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type Store struct {
	db        *sql.DB
	products  repository.ProductRepository
	rentals   repository.RentalRepository
	sequences repository.SequenceRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:        db,
		products:  NewProductRepository(db),
		rentals:   NewRentalRepository(db),
		sequences: NewSequenceRepository(db),
	}
}

// Open connects with lib/pq and verifies the connection
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (s *Store) Products() repository.ProductRepository   { return s.products }
func (s *Store) Rentals() repository.RentalRepository     { return s.rentals }
func (s *Store) Sequences() repository.SequenceRepository { return s.sequences }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables and indexes
func (s *Store) Migrate(ctx context.Context) error {
	logger.DatabaseCall("MIGRATE", "schema")
	_, err := s.db.ExecContext(ctx, schema)
	logger.DatabaseResult("MIGRATE", 0, err)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
