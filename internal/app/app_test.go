package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")

	a, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_WiresLedger(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	from, err := a.Ledger.CreateAccount(ctx, ledger.NewAccount{Name: "Checking Account", Type: domain.AccountTypeCash, InitialBalance: decimal.NewFromInt(50)})
	if err != nil {
		t.Fatalf("CreateAccount() error: %v", err)
	}
	to, err := a.Ledger.CreateAccount(ctx, ledger.NewAccount{Name: "Apple HYSA", Type: domain.AccountTypeInvesting})
	if err != nil {
		t.Fatalf("CreateAccount() error: %v", err)
	}
	if _, err := a.Transfers.Transfer(ctx, from.ID, to.ID, decimal.NewFromInt(20), ""); err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
}

func TestEngine_RequiresNotion(t *testing.T) {
	a := newTestApp(t)

	_, err := a.Engine(false)
	if err == nil || !strings.Contains(err.Error(), config.EnvNotionToken) {
		t.Errorf("Engine() error = %v, want missing notion settings", err)
	}

	a.Config.Notion.Token = "secret"
	a.Config.Notion.DatabaseID = "db"
	if _, err := a.Engine(true); err != nil {
		t.Errorf("Engine() error: %v", err)
	}
}

func TestReplayEngine_RequiresArchive(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.ReplayEngine(context.Background(), "snapshots/x.json", false); err == nil {
		t.Error("ReplayEngine() without archive succeeded")
	}
}

type emptyProvider struct{ err error }

func (p emptyProvider) Fetch(ctx context.Context, cursor string) (reconcile.Page, error) {
	return reconcile.Page{}, p.err
}

func TestSyncJobHandler(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"committed", nil, false},
		{"failed", &domain.ExternalFetchError{Source: "notion", Err: errors.New("unauthorized")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := reconcile.New(reconcile.Config{}, emptyProvider{err: tt.err}, a.Ledger, zerolog.Nop())
			job := &jobs.SyncJob{JobID: "j1"}

			err := SyncJobHandler(e, zerolog.Nop())(context.Background(), job)
			if (err != nil) != tt.wantErr {
				t.Fatalf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			if job.Stats == nil || job.Stats.PassID == "" {
				t.Fatalf("Stats not recorded: %+v", job.Stats)
			}
			wantState := reconcile.StateCommitted
			if tt.wantErr {
				wantState = reconcile.StateFailed
			}
			if job.Stats.State != wantState {
				t.Errorf("State = %s, want %s", job.Stats.State, wantState)
			}
		})
	}
}
