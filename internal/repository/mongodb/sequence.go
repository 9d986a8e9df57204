package mongodb

import (
	"context"
	"fmt"

	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sequenceDoc struct {
	DayKey string `bson:"_id"`
	Value  int64  `bson:"value"`
}

type sequenceRepository struct {
	collection *mongo.Collection
}

func NewSequenceRepository(db *mongo.Database) repository.SequenceRepository {
	return &sequenceRepository{collection: db.Collection(sequencesCollection)}
}

// Next uses an upserting $inc so the counter document is created on the first rental of the day
func (r *sequenceRepository) Next(ctx context.Context, dayKey string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	logger.DatabaseCall("FIND_AND_MODIFY", sequencesCollection, "dayKey", dayKey)
	var doc sequenceDoc
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": dayKey},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&doc)
	logger.DatabaseResult("FIND_AND_MODIFY", 1, err, "dayKey", dayKey, "value", doc.Value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance rental sequence %s: %w", dayKey, err)
	}
	return doc.Value, nil
}
