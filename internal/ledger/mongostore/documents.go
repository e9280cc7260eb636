package mongostore

import (
	"fmt"
	"time"

	"tripshare/internal/ledger"
)

const (
	MetaCollection         = "Ledger_meta"
	AccountsCollection     = "Accounts"
	ApplicationsCollection = "Applications"
	LocalStatesCollection  = "Local_states"
	ReceiptsCollection     = "Receipts"

	metaID = "ledger"
)

// Counters are stored as int64 with the same bit pattern as the uint64 they hold. Mongo has no
// unsigned type and every value must survive a round trip unchanged.
func i64(u uint64) int64 { return int64(u) }
func u64(i int64) uint64 { return uint64(i) }

type metaDocument struct {
	ID        string `bson:"_id"`
	Round     int64  `bson:"round"`
	NextAppID int64  `bson:"next_app_id"`
}

type accountDocument struct {
	Address string `bson:"_id"`
	Balance int64  `bson:"balance"`
}

type valueDocument struct {
	Key   string `bson:"key"`
	Type  string `bson:"type"`
	Bytes []byte `bson:"bytes,omitempty"`
	Uint  int64  `bson:"uint,omitempty"`
}

const (
	valueTypeBytes = "bytes"
	valueTypeUint  = "uint"
)

type applicationDocument struct {
	ID           int64           `bson:"_id"`
	Creator      string          `bson:"creator"`
	ProgramHash  string          `bson:"program_hash"`
	Global       []valueDocument `bson:"global"`
	CreatedRound int64           `bson:"created_round"`
	Version      int64           `bson:"version"`
}

type localStateDocument struct {
	ID      string          `bson:"_id"`
	AppID   int64           `bson:"app_id"`
	Account string          `bson:"account"`
	Values  []valueDocument `bson:"values"`
}

type receiptDocument struct {
	BundleID    string    `bson:"_id"`
	GroupID     string    `bson:"group_id"`
	Round       int64     `bson:"round"`
	AppID       int64     `bson:"app_id"`
	Operations  int       `bson:"operations"`
	CommittedAt time.Time `bson:"committed_at"`
}

func localID(app ledger.AppID, addr ledger.Address) string {
	return fmt.Sprintf("%d:%s", app, addr)
}

func encodeValues(kv ledger.KeyValue) []valueDocument {
	out := make([]valueDocument, 0, len(kv))
	for k, v := range kv {
		doc := valueDocument{Key: k}
		switch v.Type {
		case ledger.TypeUint:
			doc.Type = valueTypeUint
			doc.Uint = i64(v.Uint)
		default:
			doc.Type = valueTypeBytes
			doc.Bytes = v.Bytes
		}
		out = append(out, doc)
	}
	return out
}

func decodeValues(docs []valueDocument) (ledger.KeyValue, error) {
	kv := make(ledger.KeyValue, len(docs))
	for _, d := range docs {
		switch d.Type {
		case valueTypeUint:
			kv.SetUint(d.Key, u64(d.Uint))
		case valueTypeBytes:
			kv.SetBytes(d.Key, d.Bytes)
		default:
			return nil, fmt.Errorf("key %q has unknown value type %q", d.Key, d.Type)
		}
	}
	return kv, nil
}

func toApplicationDocument(a *ledger.Application) applicationDocument {
	return applicationDocument{
		ID:           i64(uint64(a.ID)),
		Creator:      a.Creator.String(),
		ProgramHash:  a.ProgramHash.String(),
		Global:       encodeValues(a.Global),
		CreatedRound: i64(uint64(a.CreatedRound)),
		Version:      i64(a.Version),
	}
}

func (d applicationDocument) toApplication() (*ledger.Application, error) {
	creator, err := ledger.ParseAddress(d.Creator)
	if err != nil {
		return nil, fmt.Errorf("application %d creator: %w", d.ID, err)
	}
	hash, err := ledger.ParseDigest(d.ProgramHash)
	if err != nil {
		return nil, fmt.Errorf("application %d program hash: %w", d.ID, err)
	}
	global, err := decodeValues(d.Global)
	if err != nil {
		return nil, fmt.Errorf("application %d: %w", d.ID, err)
	}
	return &ledger.Application{
		ID:           ledger.AppID(u64(d.ID)),
		Creator:      creator,
		ProgramHash:  hash,
		Global:       global,
		CreatedRound: ledger.Round(u64(d.CreatedRound)),
		Version:      u64(d.Version),
	}, nil
}

func toReceiptDocument(r *ledger.Receipt) receiptDocument {
	return receiptDocument{
		BundleID:    r.BundleID,
		GroupID:     r.GroupID.String(),
		Round:       i64(uint64(r.Round)),
		AppID:       i64(uint64(r.AppID)),
		Operations:  r.Operations,
		CommittedAt: r.CommittedAt,
	}
}

func (d receiptDocument) toReceipt() (*ledger.Receipt, error) {
	group, err := ledger.ParseDigest(d.GroupID)
	if err != nil {
		return nil, fmt.Errorf("receipt %s group id: %w", d.BundleID, err)
	}
	return &ledger.Receipt{
		BundleID:    d.BundleID,
		GroupID:     group,
		Round:       ledger.Round(u64(d.Round)),
		AppID:       ledger.AppID(u64(d.AppID)),
		Operations:  d.Operations,
		CommittedAt: d.CommittedAt.UTC(),
	}, nil
}
