package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tripshare/internal/indexer/repository"
	"tripshare/internal/ledger/mongostore"
	"tripshare/internal/migrations/mongo/validators"
	"tripshare/pkg/logger"
)

var (
	AccountsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "balance", Value: -1}}},
	}

	ApplicationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "creator", Value: 1}, {Key: "created_round", Value: -1}}},
		{Keys: bson.D{{Key: "program_hash", Value: 1}}},
	}

	LocalStatesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "app_id", Value: 1}, {Key: "account", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "account", Value: 1}}},
	}

	ReceiptsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "round", Value: 1}}},
		{Keys: bson.D{{Key: "app_id", Value: 1}, {Key: "round", Value: 1}}},
	}

	ActivitiesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "round", Value: 1}, {Key: "occurred_at", Value: 1}}},
		{Keys: bson.D{{Key: "actor", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "bundle_id", Value: 1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection the services use with its schema and indexes.
func Collections() map[string]collectionDef {
	return map[string]collectionDef{
		mongostore.MetaCollection:         {Validator: validators.LedgerMetaValidator},
		mongostore.AccountsCollection:     {Indexes: AccountsIndexes, Validator: validators.AccountValidator},
		mongostore.ApplicationsCollection: {Indexes: ApplicationsIndexes, Validator: validators.ApplicationValidator},
		mongostore.LocalStatesCollection:  {Indexes: LocalStatesIndexes, Validator: validators.LocalStateValidator},
		mongostore.ReceiptsCollection:     {Indexes: ReceiptsIndexes, Validator: validators.ReceiptValidator},
		repository.CollectionName:         {Indexes: ActivitiesIndexes, Validator: validators.ActivityValidator},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, database string, log *logger.Logger) error {
	db := client.Database(database)
	log.Info("Running Mongo migrations", "database", database)

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
