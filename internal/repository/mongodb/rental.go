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

// rentalDoc is the stored shape of a rental; equipment and history are embedded
type rentalDoc struct {
	ID            string            `bson:"_id"`
	RentalNumber  string            `bson:"rental_number"`
	UserID        string            `bson:"user_id"`
	ContactEmail  string            `bson:"contact_email,omitempty"`
	Status        string            `bson:"status"`
	Period        periodDoc         `bson:"period"`
	Equipment     []equipmentDoc    `bson:"equipment"`
	Pricing       pricingDoc        `bson:"pricing"`
	Delivery      deliveryDoc       `bson:"delivery"`
	Notes         string            `bson:"notes,omitempty"`
	StatusHistory []statusChangeDoc `bson:"status_history"`
	CreatedAt     time.Time         `bson:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at"`
}

type periodDoc struct {
	StartDate       time.Time  `bson:"start_date"`
	EndDate         time.Time  `bson:"end_date"`
	ActualStartDate *time.Time `bson:"actual_start_date,omitempty"`
	ActualEndDate   *time.Time `bson:"actual_end_date,omitempty"`
}

type equipmentDoc struct {
	ProductID   string               `bson:"product_id"`
	ProductName string               `bson:"product_name"`
	Quantity    int                  `bson:"quantity"`
	DailyRate   primitive.Decimal128 `bson:"daily_rate"`
	TotalDays   int                  `bson:"total_days"`
	Subtotal    primitive.Decimal128 `bson:"subtotal"`
}

type pricingDoc struct {
	Subtotal       primitive.Decimal128 `bson:"subtotal"`
	DiscountAmount primitive.Decimal128 `bson:"discount_amount"`
	DeliveryFee    primitive.Decimal128 `bson:"delivery_fee"`
	SetupFee       primitive.Decimal128 `bson:"setup_fee"`
	LateFee        primitive.Decimal128 `bson:"late_fee"`
	DamageFee      primitive.Decimal128 `bson:"damage_fee"`
	TotalAmount    primitive.Decimal128 `bson:"total_amount"`
}

type deliveryDoc struct {
	Required bool   `bson:"required"`
	Address  string `bson:"address,omitempty"`
}

type statusChangeDoc struct {
	Status    string    `bson:"status"`
	Date      time.Time `bson:"date"`
	Note      string    `bson:"note,omitempty"`
	UpdatedBy string    `bson:"updated_by,omitempty"`
}

func rentalToDocument(rt *domain.Rental) (*rentalDoc, error) {
	var money moneyCodec
	doc := &rentalDoc{
		ID:           rt.ID,
		RentalNumber: rt.RentalNumber,
		UserID:       rt.UserID,
		ContactEmail: rt.ContactEmail,
		Status:       string(rt.Status),
		Period: periodDoc{
			StartDate:       rt.RentalPeriod.StartDate,
			EndDate:         rt.RentalPeriod.EndDate,
			ActualStartDate: rt.RentalPeriod.ActualStartDate,
			ActualEndDate:   rt.RentalPeriod.ActualEndDate,
		},
		Pricing: pricingDoc{
			Subtotal:       money.encode(rt.Pricing.Subtotal),
			DiscountAmount: money.encode(rt.Pricing.DiscountAmount),
			DeliveryFee:    money.encode(rt.Pricing.DeliveryFee),
			SetupFee:       money.encode(rt.Pricing.SetupFee),
			LateFee:        money.encode(rt.Pricing.LateFee),
			DamageFee:      money.encode(rt.Pricing.DamageFee),
			TotalAmount:    money.encode(rt.Pricing.TotalAmount),
		},
		Delivery:  deliveryDoc{Required: rt.Delivery.Required, Address: rt.Delivery.Address},
		Notes:     rt.Notes,
		CreatedAt: rt.CreatedAt,
		UpdatedAt: rt.UpdatedAt,
	}
	for _, line := range rt.Equipment {
		doc.Equipment = append(doc.Equipment, equipmentDoc{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			DailyRate:   money.encode(line.DailyRate),
			TotalDays:   line.TotalDays,
			Subtotal:    money.encode(line.Subtotal),
		})
	}
	for _, h := range rt.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, statusChangeDoc{
			Status:    string(h.Status),
			Date:      h.Date,
			Note:      h.Note,
			UpdatedBy: h.UpdatedBy,
		})
	}
	if money.err != nil {
		return nil, fmt.Errorf("rental %s: %w", rt.ID, money.err)
	}
	return doc, nil
}

func (d *rentalDoc) toDomain() (*domain.Rental, error) {
	var money moneyCodec
	rt := &domain.Rental{
		ID:           d.ID,
		RentalNumber: d.RentalNumber,
		UserID:       d.UserID,
		ContactEmail: d.ContactEmail,
		Status:       domain.RentalStatus(d.Status),
		RentalPeriod: domain.RentalPeriod{
			StartDate:       d.Period.StartDate,
			EndDate:         d.Period.EndDate,
			ActualStartDate: d.Period.ActualStartDate,
			ActualEndDate:   d.Period.ActualEndDate,
		},
		Pricing: domain.Pricing{
			Subtotal:       money.decode(d.Pricing.Subtotal),
			DiscountAmount: money.decode(d.Pricing.DiscountAmount),
			DeliveryFee:    money.decode(d.Pricing.DeliveryFee),
			SetupFee:       money.decode(d.Pricing.SetupFee),
			LateFee:        money.decode(d.Pricing.LateFee),
			DamageFee:      money.decode(d.Pricing.DamageFee),
			TotalAmount:    money.decode(d.Pricing.TotalAmount),
		},
		Delivery:      domain.Delivery{Required: d.Delivery.Required, Address: d.Delivery.Address},
		Notes:         d.Notes,
		Equipment:     make([]domain.EquipmentLine, 0, len(d.Equipment)),
		StatusHistory: make([]domain.StatusChange, 0, len(d.StatusHistory)),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, line := range d.Equipment {
		rt.Equipment = append(rt.Equipment, domain.EquipmentLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			DailyRate:   money.decode(line.DailyRate),
			TotalDays:   line.TotalDays,
			Subtotal:    money.decode(line.Subtotal),
		})
	}
	for _, h := range d.StatusHistory {
		rt.StatusHistory = append(rt.StatusHistory, domain.StatusChange{
			Status:    domain.RentalStatus(h.Status),
			Date:      h.Date,
			Note:      h.Note,
			UpdatedBy: h.UpdatedBy,
		})
	}
	if money.err != nil {
		return nil, fmt.Errorf("rental %s: %w", d.ID, money.err)
	}
	return rt, nil
}

type rentalRepository struct {
	collection *mongo.Collection
}

func NewRentalRepository(db *mongo.Database) repository.RentalRepository {
	return &rentalRepository{collection: db.Collection(rentalsCollection)}
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	doc, err := rentalToDocument(rt)
	if err != nil {
		return err
	}

	logger.DatabaseCall("INSERT", rentalsCollection, "rentalID", rt.ID, "rentalNumber", rt.RentalNumber)
	_, err = r.collection.InsertOne(ctx, doc)
	logger.DatabaseResult("INSERT", 1, err, "rentalID", rt.ID)
	if err != nil {
		return fmt.Errorf("failed to insert rental: %w", err)
	}
	return nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id string) (*domain.Rental, error) {
	logger.DatabaseCall("FIND", rentalsCollection, "rentalID", id)

	var doc rentalDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		logger.DatabaseResult("FIND", 0, nil, "rentalID", id)
		return nil, domain.NotFoundFrom(domain.ErrRentalNotFound, id)
	}
	logger.DatabaseResult("FIND", 1, err, "rentalID", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find rental %s: %w", id, err)
	}
	return doc.toDomain()
}

func (r *rentalRepository) Update(ctx context.Context, rt *domain.Rental, expectedUpdatedAt time.Time) error {
	doc, err := rentalToDocument(rt)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"status":         doc.Status,
		"period":         doc.Period,
		"equipment":      doc.Equipment,
		"pricing":        doc.Pricing,
		"notes":          doc.Notes,
		"status_history": doc.StatusHistory,
		"updated_at":     doc.UpdatedAt,
	}}

	logger.DatabaseCall("UPDATE", rentalsCollection, "rentalID", rt.ID, "status", rt.Status)
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": rt.ID, "updated_at": expectedUpdatedAt}, update)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "rentalID", rt.ID)
		return fmt.Errorf("failed to update rental %s: %w", rt.ID, err)
	}
	logger.DatabaseResult("UPDATE", result.ModifiedCount, nil, "rentalID", rt.ID)
	if result.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the rental is gone or someone else wrote it since it was read.
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": rt.ID})
	if err != nil {
		return fmt.Errorf("failed to check rental %s: %w", rt.ID, err)
	}
	if count == 0 {
		return domain.NotFoundFrom(domain.ErrRentalNotFound, rt.ID)
	}
	return domain.StaleFrom(rt.ID)
}

func (r *rentalRepository) List(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	count, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rentals: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(filter.Page, filter.Limit)).
		SetLimit(int64(filter.Limit))

	rentals, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return rentals, int(count), nil
}

func (r *rentalRepository) ListHolding(ctx context.Context, productID string, period domain.Period, excludeID string) ([]domain.Rental, error) {
	statuses := make([]string, len(domain.HoldingStatuses))
	for i, s := range domain.HoldingStatuses {
		statuses[i] = string(s)
	}

	query := bson.M{
		"status":               bson.M{"$in": statuses},
		"equipment.product_id": productID,
		"period.start_date":    bson.M{"$lte": period.EndDate},
		"period.end_date":      bson.M{"$gte": period.StartDate},
	}
	if excludeID != "" {
		query["_id"] = bson.M{"$ne": excludeID}
	}
	return r.find(ctx, query)
}

func (r *rentalRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Rental, error) {
	query := bson.M{
		"status":          string(domain.RentalStatusActive),
		"period.end_date": bson.M{"$lt": asOf},
	}
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "period.end_date", Value: 1}}))
}

func (r *rentalRepository) find(ctx context.Context, query bson.M, opts ...*options.FindOptions) ([]domain.Rental, error) {
	logger.DatabaseCall("FIND", rentalsCollection, "filter", query)
	cursor, err := r.collection.Find(ctx, query, opts...)
	if err != nil {
		logger.DatabaseResult("FIND", 0, err)
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []rentalDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode rentals: %w", err)
	}
	logger.DatabaseResult("FIND", int64(len(docs)), nil)

	rentals := make([]domain.Rental, 0, len(docs))
	for i := range docs {
		rt, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rt)
	}
	return rentals, nil
}
