package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	indexererrors "tripshare/internal/indexer/errors"
	"tripshare/pkg/config"
	mongotx "tripshare/pkg/db/mongo"
	"tripshare/pkg/model"
)

const CollectionName = "Activities"

type ActivityRepository interface {
	// Upsert stores a by its event id and reports whether it was new.
	Upsert(ctx context.Context, a *model.Activity) (bool, error)
	FindByID(ctx context.Context, eventID string) (*model.Activity, error)
	FindByBooking(ctx context.Context, bookingID uint64, limit int, offset int64) ([]*model.Activity, error)
	CountByBooking(ctx context.Context, bookingID uint64) (int64, error)
}

type mongoActivityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoActivityRepository(cfg *config.Config) ActivityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoActivityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// Upsert only ever inserts. A redelivered event matches the existing document and changes
// nothing, so consumers may process the same message any number of times.
func (r *mongoActivityRepository) Upsert(ctx context.Context, a *model.Activity) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{"_id": a.EventID}
	update := bson.M{"$setOnInsert": a}
	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to upsert activity %s: %w", a.EventID, err)
	}
	return result.UpsertedCount == 1, nil
}

func (r *mongoActivityRepository) FindByID(ctx context.Context, eventID string) (*model.Activity, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	var a model.Activity
	err := r.collection.FindOne(ctx, bson.M{"_id": eventID}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, indexererrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find activity: %w", err)
	}
	return &a, nil
}

func (r *mongoActivityRepository) FindByBooking(ctx context.Context, bookingID uint64, limit int, offset int64) ([]*model.Activity, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "round", Value: 1}, {Key: "occurred_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bookingFilter(bookingID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find activities: %w", err)
	}
	defer cursor.Close(ctx)

	activities := []*model.Activity{}
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities: %w", err)
	}
	return activities, nil
}

func (r *mongoActivityRepository) CountByBooking(ctx context.Context, bookingID uint64) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bookingFilter(bookingID))
	if err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

func bookingFilter(bookingID uint64) bson.M {
	return bson.M{"booking_id": int64(bookingID)}
}
