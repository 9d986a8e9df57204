package mongodb

import (
	"context"
	"fmt"
	"time"

	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	productsCollection  = "products"
	rentalsCollection   = "rentals"
	sequencesCollection = "rental_sequences"
)

// Config holds MongoDB connection settings
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	products  repository.ProductRepository
	rentals   repository.RentalRepository
	sequences repository.SequenceRepository
}

// Connect opens a client, verifies it against the primary and ensures indexes
func Connect(cfg Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := NewStore(client.Database(cfg.Database))
	store.client = client

	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to create MongoDB indexes", "error", err)
	}

	logger.Info("MongoDB connection established", "database", cfg.Database)
	return store, nil
}

// NewStore builds the repositories over an existing database handle
func NewStore(db *mongo.Database) *Store {
	return &Store{
		client:    db.Client(),
		db:        db,
		products:  NewProductRepository(db),
		rentals:   NewRentalRepository(db),
		sequences: NewSequenceRepository(db),
	}
}

func (s *Store) Products() repository.ProductRepository   { return s.products }
func (s *Store) Rentals() repository.RentalRepository     { return s.rentals }
func (s *Store) Sequences() repository.SequenceRepository { return s.sequences }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the rental queries rely on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(productsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "is_for_rental", Value: 1}, {Key: "category", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}

	_, err = s.db.Collection(rentalsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "rental_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "equipment.product_id", Value: 1}, {Key: "status", Value: 1}, {Key: "period.start_date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create rental indexes: %w", err)
	}
	return nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode amount %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode amount %s: %w", v.String(), err)
	}
	return d, nil
}

// moneyCodec converts a batch of amounts and keeps the first failure
type moneyCodec struct {
	err error
}

func (c *moneyCodec) encode(d decimal.Decimal) primitive.Decimal128 {
	v, err := toDecimal128(d)
	if err != nil && c.err == nil {
		c.err = err
	}
	return v
}

func (c *moneyCodec) decode(v primitive.Decimal128) decimal.Decimal {
	d, err := fromDecimal128(v)
	if err != nil && c.err == nil {
		c.err = err
	}
	return d
}

func skip(page, limit int) int64 {
	return int64((page - 1) * limit)
}
