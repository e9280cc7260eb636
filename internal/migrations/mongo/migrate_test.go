package mongo

import (
	"testing"

	"tripshare/internal/indexer/repository"
	"tripshare/internal/ledger/mongostore"
)

func TestCollections_CoverEveryStore(t *testing.T) {
	want := []string{
		mongostore.MetaCollection,
		mongostore.AccountsCollection,
		mongostore.ApplicationsCollection,
		mongostore.LocalStatesCollection,
		mongostore.ReceiptsCollection,
		repository.CollectionName,
	}

	got := Collections()
	if len(got) != len(want) {
		t.Errorf("expected %d collections, got %d", len(want), len(got))
	}
	for _, name := range want {
		def, ok := got[name]
		if !ok {
			t.Errorf("expected collection %s", name)
			continue
		}
		if _, ok := def.Validator["$jsonSchema"]; !ok {
			t.Errorf("expected %s to carry a JSON schema validator", name)
		}
	}
}
