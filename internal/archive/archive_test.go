package archive

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Write(_ context.Context, object string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.objects[object] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Read(_ context.Context, object string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func strp(s string) *string { return &s }

func TestObjectName(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	got := ObjectName("snapshots", "abc", at)
	want := "snapshots/2024/03/05/20240305T140709Z-abc.json"
	if got != want {
		t.Errorf("ObjectName() = %q, want %q", got, want)
	}
}

func TestArchiveAndLoad(t *testing.T) {
	store := newMemStore()
	a := New(store, "", zerolog.Nop())
	at := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return at }

	amount := decimal.RequireFromString("-12.34")
	records := []domain.RawRecord{
		{ExternalID: "p1", Name: strp("Groceries"), Amount: &amount, Method: strp("Debit")},
		{ExternalID: "p2"},
	}

	if err := a.Archive(context.Background(), "pass-1", records); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}

	object := ObjectName("snapshots", "pass-1", at)
	if _, ok := store.objects[object]; !ok {
		t.Fatalf("object %q not written; have %v", object, store.objects)
	}

	snap, err := a.Load(context.Background(), object)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if snap.PassID != "pass-1" || !snap.FetchedAt.Equal(at) || len(snap.Records) != 2 {
		t.Fatalf("Load() = %+v", snap)
	}
	if !snap.Records[0].Amount.Equal(amount) || *snap.Records[0].Name != "Groceries" {
		t.Errorf("record 0 = %+v", snap.Records[0])
	}
	if snap.Records[1].Name != nil || snap.Records[1].Amount != nil {
		t.Errorf("missing fields should stay missing, got %+v", snap.Records[1])
	}
}

func TestArchive_StoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("permission denied")
	a := New(store, "x", zerolog.Nop())

	err := a.Archive(context.Background(), "pass-1", nil)
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Archive() error = %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	store := newMemStore()
	store.objects["bad.json"] = []byte("{not json")
	a := New(store, "", zerolog.Nop())

	if _, err := a.Load(context.Background(), "missing.json"); err == nil {
		t.Error("Load() of missing object succeeded")
	}
	if _, err := a.Load(context.Background(), "bad.json"); err == nil {
		t.Error("Load() of malformed object succeeded")
	}
}

func TestReplayProvider_Fetch(t *testing.T) {
	p := NewReplayProvider(Snapshot{Records: []domain.RawRecord{{ExternalID: "p1"}}})

	page, err := p.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if page.HasMore || len(page.Records) != 1 {
		t.Errorf("Fetch() = %+v", page)
	}

	_, err = p.Fetch(context.Background(), "next")
	var fetchErr *domain.ExternalFetchError
	if !errors.As(err, &fetchErr) || fetchErr.Retryable {
		t.Errorf("Fetch(cursor) error = %v, want permanent ExternalFetchError", err)
	}
}

func TestReplayIntoEngine(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	defer db.Close()
	l := ledger.New(db, zerolog.Nop())

	store := newMemStore()
	a := New(store, "", zerolog.Nop())

	amount := decimal.RequireFromString("20")
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	records := []domain.RawRecord{{
		ExternalID:  "p1",
		Name:        strp("Lunch"),
		Amount:      &amount,
		Date:        &date,
		Method:      strp("Venmo"),
		Category:    strp("Food"),
		SubCategory: strp("Restaurants"),
	}}
	if err := a.Archive(context.Background(), "original", records); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	var object string
	for name := range store.objects {
		object = name
	}
	snap, err := a.Load(context.Background(), object)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	e := reconcile.New(reconcile.Config{}, NewReplayProvider(snap), l, zerolog.Nop())
	stats, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stats.Created != 1 || stats.Warnings != 0 {
		t.Errorf("stats = %+v", stats)
	}

	venmo, err := l.GetAccountByName(context.Background(), ledger.VenmoAccountName)
	if err != nil {
		t.Fatalf("GetAccountByName() error: %v", err)
	}
	if !venmo.CurrentBalance.Equal(decimal.RequireFromString("-20")) {
		t.Errorf("Venmo balance = %s, want -20", venmo.CurrentBalance)
	}
}
