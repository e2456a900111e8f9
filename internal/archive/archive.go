// Package archive keeps copies of fetched reconciliation snapshots in object
// storage and can replay them as a record source.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/rs/zerolog"
)

// ObjectStore is the storage an Archiver writes to.
type ObjectStore interface {
	Write(ctx context.Context, object string, data []byte) error
	Read(ctx context.Context, object string) ([]byte, error)
}

// Snapshot is the archived form of one fetched record set.
type Snapshot struct {
	PassID    string             `json:"pass_id"`
	FetchedAt time.Time          `json:"fetched_at"`
	Records   []domain.RawRecord `json:"records"`
}

// Archiver stores snapshots as JSON objects under a prefix.
type Archiver struct {
	store  ObjectStore
	prefix string
	log    zerolog.Logger
	now    func() time.Time
}

// New returns an archiver writing under prefix ("snapshots" when empty).
func New(store ObjectStore, prefix string, log zerolog.Logger) *Archiver {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &Archiver{
		store:  store,
		prefix: prefix,
		log:    log.With().Str("component", "archive").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ObjectName is where a snapshot fetched at t is stored:
// <prefix>/YYYY/MM/DD/<timestamp>-<passID>.json.
func ObjectName(prefix, passID string, t time.Time) string {
	t = t.UTC()
	return path.Join(prefix, t.Format("2006/01/02"), t.Format("20060102T150405Z")+"-"+passID+".json")
}

// Archive implements reconcile.Archiver.
func (a *Archiver) Archive(ctx context.Context, passID string, records []domain.RawRecord) error {
	snap := Snapshot{PassID: passID, FetchedAt: a.now(), Records: records}
	if snap.Records == nil {
		snap.Records = []domain.RawRecord{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("Archive: encoding snapshot: %w", err)
	}

	object := ObjectName(a.prefix, passID, snap.FetchedAt)
	if err := a.store.Write(ctx, object, data); err != nil {
		return fmt.Errorf("Archive: %w", err)
	}

	a.log.Info().
		Str("pass_id", passID).
		Str("object", object).
		Int("records", len(records)).
		Msg("Archived snapshot")
	return nil
}

// Load reads an archived snapshot back.
func (a *Archiver) Load(ctx context.Context, object string) (Snapshot, error) {
	data, err := a.store.Read(ctx, object)
	if err != nil {
		return Snapshot{}, fmt.Errorf("Load: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("Load: decoding %s: %w", object, err)
	}
	return snap, nil
}

// ReplayProvider serves an archived snapshot as a single page, so a past
// snapshot can be reconciled again without reaching the original source.
type ReplayProvider struct {
	records []domain.RawRecord
}

var _ reconcile.Provider = (*ReplayProvider)(nil)

func NewReplayProvider(snap Snapshot) *ReplayProvider {
	return &ReplayProvider{records: snap.Records}
}

func (p *ReplayProvider) Fetch(ctx context.Context, cursor string) (reconcile.Page, error) {
	if err := ctx.Err(); err != nil {
		return reconcile.Page{}, err
	}
	if cursor != "" {
		return reconcile.Page{}, &domain.ExternalFetchError{
			Source: "archive",
			Err:    fmt.Errorf("unexpected cursor %q", cursor),
		}
	}
	return reconcile.Page{Records: p.records}, nil
}
