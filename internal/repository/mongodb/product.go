package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Category    string               `bson:"category"`
	Stock       int                  `bson:"stock"`
	IsForRental bool                 `bson:"is_for_rental"`
	DailyRate   primitive.Decimal128 `bson:"daily_rate"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func (d *productDoc) toDomain() (*domain.Product, error) {
	rate, err := fromDecimal128(d.DailyRate)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", d.ID, err)
	}
	return &domain.Product{
		ID:          d.ID,
		Name:        d.Name,
		Category:    d.Category,
		Stock:       d.Stock,
		IsForRental: d.IsForRental,
		RentalPrice: domain.RentalPrice{Daily: rate},
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

type productRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) repository.ProductRepository {
	return &productRepository{collection: db.Collection(productsCollection)}
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	logger.DatabaseCall("FIND", productsCollection, "productID", id)

	var doc productDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		logger.DatabaseResult("FIND", 0, nil, "productID", id)
		return nil, domain.NotFoundFrom(domain.ErrProductNotFound, id)
	}
	logger.DatabaseResult("FIND", 1, err, "productID", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", id, err)
	}
	return doc.toDomain()
}

func (r *productRepository) ListRentable(ctx context.Context, category string, page, limit int) ([]domain.Product, int, error) {
	filter := bson.M{"is_for_rental": true}
	if category != "" {
		filter["category"] = category
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))

	logger.DatabaseCall("FIND", productsCollection, "category", category, "page", page, "limit", limit)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logger.DatabaseResult("FIND", 0, err)
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}
	logger.DatabaseResult("FIND", int64(len(docs)), nil)

	products := make([]domain.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toDomain()
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, int(count), nil
}
