// Package mongostore persists the simulated ledger in MongoDB. Every delta is written in one
// transaction, so a crash never leaves a bundle half committed.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tripshare/internal/ledger"
	mongotx "tripshare/pkg/db/mongo"
	"tripshare/pkg/logger"
)

type Store struct {
	meta      *mongo.Collection
	accounts  *mongo.Collection
	apps      *mongo.Collection
	locals    *mongo.Collection
	receipts  *mongo.Collection
	txManager mongotx.TransactionManager
	timeout   time.Duration
	log       *logger.Logger
}

func New(client *mongo.Client, database string, timeout time.Duration, log *logger.Logger) *Store {
	db := client.Database(database)
	return &Store{
		meta:      db.Collection(MetaCollection),
		accounts:  db.Collection(AccountsCollection),
		apps:      db.Collection(ApplicationsCollection),
		locals:    db.Collection(LocalStatesCollection),
		receipts:  db.Collection(ReceiptsCollection),
		txManager: mongotx.NewTransactionManager(client),
		timeout:   timeout,
		log:       log.Component("ledger-store"),
	}
}

// Load reads the full ledger state. An empty database yields a fresh state.
func (s *Store) Load(ctx context.Context) (*ledger.State, []*ledger.Receipt, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.timeout)
	defer cancel()

	state := ledger.NewState()
	d := &ledger.Delta{
		NextAppID: state.NextAppID,
		Balances:  make(map[ledger.Address]uint64),
		Apps:      make(map[ledger.AppID]*ledger.Application),
		Locals:    make(map[ledger.LocalKey]ledger.KeyValue),
	}

	var meta metaDocument
	err := s.meta.FindOne(ctx, bson.M{"_id": metaID}).Decode(&meta)
	switch {
	case err == nil:
		d.Round = ledger.Round(u64(meta.Round))
		d.NextAppID = ledger.AppID(u64(meta.NextAppID))
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return nil, nil, fmt.Errorf("failed to load ledger meta: %w", err)
	}

	var accounts []accountDocument
	if err := findAll(ctx, s.accounts, &accounts); err != nil {
		return nil, nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	for _, a := range accounts {
		addr, err := ledger.ParseAddress(a.Address)
		if err != nil {
			return nil, nil, fmt.Errorf("account %s: %w", a.Address, err)
		}
		d.Balances[addr] = u64(a.Balance)
	}

	var apps []applicationDocument
	if err := findAll(ctx, s.apps, &apps); err != nil {
		return nil, nil, fmt.Errorf("failed to load applications: %w", err)
	}
	for _, doc := range apps {
		app, err := doc.toApplication()
		if err != nil {
			return nil, nil, err
		}
		d.Apps[app.ID] = app
	}

	var locals []localStateDocument
	if err := findAll(ctx, s.locals, &locals); err != nil {
		return nil, nil, fmt.Errorf("failed to load local states: %w", err)
	}
	for _, doc := range locals {
		addr, err := ledger.ParseAddress(doc.Account)
		if err != nil {
			return nil, nil, fmt.Errorf("local state %s: %w", doc.ID, err)
		}
		kv, err := decodeValues(doc.Values)
		if err != nil {
			return nil, nil, fmt.Errorf("local state %s: %w", doc.ID, err)
		}
		d.Locals[ledger.LocalKey{App: ledger.AppID(u64(doc.AppID)), Account: addr}] = kv
	}

	var receiptDocs []receiptDocument
	if err := findAll(ctx, s.receipts, &receiptDocs); err != nil {
		return nil, nil, fmt.Errorf("failed to load receipts: %w", err)
	}
	receipts := make([]*ledger.Receipt, 0, len(receiptDocs))
	for _, doc := range receiptDocs {
		r, err := doc.toReceipt()
		if err != nil {
			return nil, nil, err
		}
		receipts = append(receipts, r)
	}

	state.Apply(d)
	s.log.Info("Ledger state loaded from MongoDB",
		"round", state.Round,
		"applications", len(state.Apps),
		"receipts", len(receipts),
	)
	return state, receipts, nil
}

// Commit writes d in one transaction. Applications are replaced only if their stored version
// still matches d.PrevVersions. A delta whose receipt is already stored is a no-op.
func (s *Store) Commit(ctx context.Context, d *ledger.Delta) error {
	ctx, cancel := mongotx.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.txManager.ExecuteTransaction(ctx, func(sc mongo.SessionContext) error {
		if d.Receipt != nil {
			n, err := s.receipts.CountDocuments(sc, bson.M{"_id": d.Receipt.BundleID})
			if err != nil {
				return fmt.Errorf("failed to check receipt: %w", err)
			}
			if n > 0 {
				s.log.Info("Delta already committed", "bundle_id", d.Receipt.BundleID)
				return nil
			}
		}

		upsert := options.Replace().SetUpsert(true)
		meta := metaDocument{ID: metaID, Round: i64(uint64(d.Round)), NextAppID: i64(uint64(d.NextAppID))}
		if _, err := s.meta.ReplaceOne(sc, bson.M{"_id": metaID}, meta, upsert); err != nil {
			return fmt.Errorf("failed to write ledger meta: %w", err)
		}

		for addr, bal := range d.Balances {
			id := addr.String()
			if bal == 0 {
				if _, err := s.accounts.DeleteOne(sc, bson.M{"_id": id}); err != nil {
					return fmt.Errorf("failed to delete account %s: %w", id, err)
				}
				continue
			}
			doc := accountDocument{Address: id, Balance: i64(bal)}
			if _, err := s.accounts.ReplaceOne(sc, bson.M{"_id": id}, doc, upsert); err != nil {
				return fmt.Errorf("failed to write account %s: %w", id, err)
			}
		}

		for id, app := range d.Apps {
			if err := s.writeApplication(sc, id, app, d.PrevVersions[id]); err != nil {
				return err
			}
		}

		for key, kv := range d.Locals {
			id := localID(key.App, key.Account)
			if kv == nil {
				if _, err := s.locals.DeleteOne(sc, bson.M{"_id": id}); err != nil {
					return fmt.Errorf("failed to release local state %s: %w", id, err)
				}
				continue
			}
			doc := localStateDocument{
				ID:      id,
				AppID:   i64(uint64(key.App)),
				Account: key.Account.String(),
				Values:  encodeValues(kv),
			}
			if _, err := s.locals.ReplaceOne(sc, bson.M{"_id": id}, doc, upsert); err != nil {
				return fmt.Errorf("failed to write local state %s: %w", id, err)
			}
		}

		if d.Receipt != nil {
			if _, err := s.receipts.InsertOne(sc, toReceiptDocument(d.Receipt)); err != nil {
				return fmt.Errorf("failed to write receipt %s: %w", d.Receipt.BundleID, err)
			}
		}
		return nil
	})
}

func (s *Store) writeApplication(sc mongo.SessionContext, id ledger.AppID, app *ledger.Application, prev uint64) error {
	filter := bson.M{"_id": i64(uint64(id))}
	if app == nil {
		if _, err := s.apps.DeleteOne(sc, filter); err != nil {
			return fmt.Errorf("failed to delete application %d: %w", id, err)
		}
		if _, err := s.locals.DeleteMany(sc, bson.M{"app_id": i64(uint64(id))}); err != nil {
			return fmt.Errorf("failed to release local states of application %d: %w", id, err)
		}
		return nil
	}

	doc := toApplicationDocument(app)
	if prev == 0 {
		if _, err := s.apps.InsertOne(sc, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("application %d: %w", id, mongotx.ErrVersionConflict)
			}
			return fmt.Errorf("failed to insert application %d: %w", id, err)
		}
		return nil
	}

	filter["version"] = i64(prev)
	res, err := s.apps.ReplaceOne(sc, filter, doc)
	if err != nil {
		return fmt.Errorf("failed to replace application %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("application %d at version %d: %w", id, prev, mongotx.ErrVersionConflict)
	}
	return nil
}

func findAll(ctx context.Context, coll *mongo.Collection, out any) error {
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}
