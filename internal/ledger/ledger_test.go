package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, zerolog.Nop())
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustCreate(t *testing.T, l *Ledger, name string, typ domain.AccountType, initial string, methods ...string) *domain.Account {
	t.Helper()
	a, err := l.CreateAccount(context.Background(), NewAccount{
		Name:              name,
		Type:              typ,
		InitialBalance:    d(initial),
		AssociatedMethods: methods,
	})
	if err != nil {
		t.Fatalf("CreateAccount(%q) error: %v", name, err)
	}
	return a
}

// assertConsistent checks that no account disagrees with its history.
func assertConsistent(t *testing.T, l *Ledger) {
	t.Helper()
	bad, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	for _, b := range bad {
		t.Errorf("account %d (%s): balance %s, history sum %s, bad entries %v",
			b.AccountID, b.AccountName, b.Balance, b.HistorySum, b.BadEntries)
	}
}

func TestCreateAccount(t *testing.T) {
	tests := []struct {
		name        string
		req         NewAccount
		wantErr     error
		wantEntries int
	}{
		{
			name:        "with initial balance",
			req:         NewAccount{Name: "Checking Account", Type: domain.AccountTypeCash, InitialBalance: d("500.00")},
			wantEntries: 1,
		},
		{
			name:        "zero initial balance",
			req:         NewAccount{Name: "Savings", Type: domain.AccountTypeInvesting},
			wantEntries: 0,
		},
		{
			name:    "invalid type",
			req:     NewAccount{Name: "Weird", Type: "crypto"},
			wantErr: domain.ErrInvalidAccountType,
		},
		{
			name:    "empty name",
			req:     NewAccount{Name: "  ", Type: domain.AccountTypeCash},
			wantErr: domain.ErrInvalidAccountName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			ctx := context.Background()

			a, err := l.CreateAccount(ctx, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateAccount() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateAccount() error: %v", err)
			}
			if !a.CurrentBalance.Equal(tt.req.InitialBalance) {
				t.Errorf("balance = %s, want %s", a.CurrentBalance, tt.req.InitialBalance)
			}

			history, err := l.History(ctx, a.ID)
			if err != nil {
				t.Fatalf("History() error: %v", err)
			}
			if len(history) != tt.wantEntries {
				t.Fatalf("History() = %d entries, want %d", len(history), tt.wantEntries)
			}
			if tt.wantEntries == 1 && history[0].ChangeKind != domain.ChangeInitialBalance {
				t.Errorf("entry kind = %s, want initial_balance", history[0].ChangeKind)
			}
			assertConsistent(t, l)
		})
	}
}

func TestCreateAccount_DuplicateName(t *testing.T) {
	l := newTestLedger(t)
	mustCreate(t, l, "Amex", domain.AccountTypeDebt, "0")

	_, err := l.CreateAccount(context.Background(), NewAccount{Name: "Amex", Type: domain.AccountTypeDebt})
	if !errors.Is(err, domain.ErrDuplicateAccountName) {
		t.Errorf("CreateAccount(duplicate) error = %v, want ErrDuplicateAccountName", err)
	}
}

func TestAdjustBalance(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := mustCreate(t, l, "Checking Account", domain.AccountTypeCash, "100")

	got, entry, err := l.AdjustBalance(ctx, Adjustment{
		AccountID:   a.ID,
		Amount:      d("-25.50"),
		Kind:        domain.ChangeManualAdjustment,
		Description: "ATM",
	})
	if err != nil {
		t.Fatalf("AdjustBalance() error: %v", err)
	}
	if !got.CurrentBalance.Equal(d("74.50")) {
		t.Errorf("balance = %s, want 74.50", got.CurrentBalance)
	}
	if !entry.PreviousBalance.Equal(d("100")) || !entry.NewBalance.Equal(d("74.50")) || !entry.Consistent() {
		t.Errorf("entry = %+v", entry)
	}

	history, err := l.History(ctx, a.ID)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 2 || history[0].ID != entry.ID {
		t.Errorf("History() newest entry = %+v, want %d", history[0], entry.ID)
	}
	assertConsistent(t, l)
}

func TestAdjustBalance_Errors(t *testing.T) {
	l := newTestLedger(t)
	a := mustCreate(t, l, "Checking Account", domain.AccountTypeCash, "10")

	tests := []struct {
		name    string
		adj     Adjustment
		wantErr error
	}{
		{"zero amount", Adjustment{AccountID: a.ID, Amount: decimal.Zero, Kind: domain.ChangeManualAdjustment}, domain.ErrInvalidAmount},
		{"unknown kind", Adjustment{AccountID: a.ID, Amount: d("1"), Kind: "gift"}, domain.ErrInvalidChangeKind},
		{"missing account", Adjustment{AccountID: 999, Amount: d("1"), Kind: domain.ChangeManualAdjustment}, domain.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := l.AdjustBalance(context.Background(), tt.adj)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AdjustBalance() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := l.GetAccount(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if !got.CurrentBalance.Equal(d("10")) {
		t.Errorf("balance after rejected adjustments = %s, want 10", got.CurrentBalance)
	}
}

func TestAdjustBalance_ConcurrentNotLost(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := mustCreate(t, l, "Checking Account", domain.AccountTypeCash, "0")

	const workers, perWorker = 8, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, _, err := l.ManualAdjustment(ctx, a.ID, d("1.25"), ""); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ManualAdjustment() error: %v", err)
	}

	got, err := l.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	want := d("1.25").Mul(decimal.NewFromInt(workers * perWorker))
	if !got.CurrentBalance.Equal(want) {
		t.Errorf("balance = %s, want %s", got.CurrentBalance, want)
	}
	assertConsistent(t, l)
}

func TestAdjustBalance_TwoHandlesOnOneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	open := func() *Ledger {
		t.Helper()
		db, err := sqlite.Open(path)
		if err != nil {
			t.Fatalf("sqlite.Open() error: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return New(db, zerolog.Nop())
	}
	api, cli := open(), open()
	ctx := context.Background()
	a := mustCreate(t, api, "Checking Account", domain.AccountTypeCash, "0")

	const perHandle = 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*perHandle)
	for _, l := range []*Ledger{api, cli} {
		for i := 0; i < perHandle; i++ {
			wg.Add(1)
			go func(l *Ledger) {
				defer wg.Done()
				if _, _, err := l.ManualAdjustment(ctx, a.ID, d("1"), ""); err != nil {
					errs <- err
				}
			}(l)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ManualAdjustment() error: %v", err)
	}

	assertBalance(t, cli, a.ID, "100")
	assertConsistent(t, api)
}

func TestAccountLocks_ReleasedAfterUse(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := mustCreate(t, l, "Checking Account", domain.AccountTypeCash, "10")

	for id := int64(1000); id < 1010; id++ {
		if _, _, err := l.ManualAdjustment(ctx, id, d("1"), ""); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Fatalf("ManualAdjustment(%d) error = %v, want ErrAccountNotFound", id, err)
		}
	}
	if _, _, err := l.ManualAdjustment(ctx, a.ID, d("1"), ""); err != nil {
		t.Fatalf("ManualAdjustment() error: %v", err)
	}

	l.locks.mu.Lock()
	n := len(l.locks.locks)
	l.locks.mu.Unlock()
	if n != 0 {
		t.Errorf("%d account locks left after all units finished", n)
	}
}

func TestUpdateAccount(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := mustCreate(t, l, "Chase", domain.AccountTypeDebt, "20", "Chase")

	name := "Chase Sapphire"
	got, err := l.UpdateAccount(ctx, a.ID, AccountUpdate{
		Name:              &name,
		AssociatedMethods: []string{"Chase Sapphire", "CSR"},
	})
	if err != nil {
		t.Fatalf("UpdateAccount() error: %v", err)
	}
	if got.Name != name || !got.HasMethod("CSR") {
		t.Errorf("UpdateAccount() = %+v", got)
	}
	if !got.CurrentBalance.Equal(d("20")) {
		t.Errorf("balance changed to %s", got.CurrentBalance)
	}

	if _, err := l.UpdateAccount(ctx, 999, AccountUpdate{Name: &name}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("UpdateAccount(missing) error = %v, want ErrAccountNotFound", err)
	}
}

func TestDeleteAccount_RemovesHistory(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := mustCreate(t, l, "Venmo", domain.AccountTypeCash, "40")
	if _, _, err := l.ManualAdjustment(ctx, a.ID, d("5"), ""); err != nil {
		t.Fatalf("ManualAdjustment() error: %v", err)
	}

	if err := l.DeleteAccount(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAccount() error: %v", err)
	}
	if _, err := l.GetAccount(ctx, a.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("GetAccount() after delete error = %v, want ErrAccountNotFound", err)
	}
	if _, err := l.History(ctx, a.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("History() after delete error = %v, want ErrAccountNotFound", err)
	}
	if err := l.DeleteAccount(ctx, a.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("second DeleteAccount() error = %v, want ErrAccountNotFound", err)
	}
}

func TestGetOrCreateAccount(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	a, created, err := l.GetOrCreateAccount(ctx, "Venmo", domain.AccountTypeCash)
	if err != nil || !created {
		t.Fatalf("first GetOrCreateAccount() = %v, %v, %v", a, created, err)
	}
	b, created, err := l.GetOrCreateAccount(ctx, "Venmo", domain.AccountTypeCash)
	if err != nil || created {
		t.Fatalf("second GetOrCreateAccount() = %v, %v, %v", b, created, err)
	}
	if a.ID != b.ID {
		t.Errorf("ids differ: %d vs %d", a.ID, b.ID)
	}

	accounts, err := l.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts() error: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("ListAccounts() = %d accounts, want 1", len(accounts))
	}
}

func TestUnit_RejectsUnlockedAccount(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := mustCreate(t, l, "Checking Account", domain.AccountTypeCash, "10")
	b := mustCreate(t, l, "Venmo", domain.AccountTypeCash, "10")

	err := l.Update(ctx, []int64{a.ID}, func(u *Unit) error {
		_, _, err := u.AdjustBalance(ctx, Adjustment{AccountID: b.ID, Amount: d("1"), Kind: domain.ChangeManualAdjustment})
		return err
	})
	if err == nil {
		t.Error("Update() allowed a mutation of an account it did not lock")
	}
}

func TestSettleAndReleaseRecord(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	checking := mustCreate(t, l, "Checking Account", domain.AccountTypeCash, "100")
	amex := mustCreate(t, l, "Amex", domain.AccountTypeDebt, "0", "Amex")

	var ref domain.RecordRef
	err := l.Batch(ctx, func(u *Unit) error {
		rec := &domain.TransactionRecord{ExternalID: "p1", Name: "Dinner", Amount: d("30"), Category: "Food", SubCategory: "Food", Method: "Debit"}
		if err := u.Records().InsertTransaction(ctx, rec); err != nil {
			return err
		}
		ref = domain.RecordRef{Kind: domain.RecordTransaction, ID: rec.ID}
		return u.SettleRecord(ctx, ref, checking, d("-30"), domain.ChangeTransaction, "Transaction: Dinner")
	})
	if err != nil {
		t.Fatalf("Batch(create) error: %v", err)
	}
	assertBalance(t, l, checking.ID, "70")

	// Same effect again is a no-op.
	err = l.Batch(ctx, func(u *Unit) error {
		return u.SettleRecord(ctx, ref, checking, d("-30"), domain.ChangeTransaction, "Transaction: Dinner")
	})
	if err != nil {
		t.Fatalf("Batch(resettle) error: %v", err)
	}
	history, _ := l.History(ctx, checking.ID)
	if len(history) != 2 {
		t.Errorf("History() = %d entries after no-op settle, want 2", len(history))
	}

	// Moving the charge to a credit card.
	err = l.Batch(ctx, func(u *Unit) error {
		return u.SettleRecord(ctx, ref, amex, d("45"), domain.ChangeTransaction, "Transaction: Dinner")
	})
	if err != nil {
		t.Fatalf("Batch(move) error: %v", err)
	}
	assertBalance(t, l, checking.ID, "100")
	assertBalance(t, l, amex.ID, "45")

	err = l.Batch(ctx, func(u *Unit) error {
		if err := u.ReleaseRecord(ctx, ref); err != nil {
			return err
		}
		return u.Records().DeleteTransaction(ctx, ref.ID)
	})
	if err != nil {
		t.Fatalf("Batch(release) error: %v", err)
	}
	assertBalance(t, l, checking.ID, "100")
	assertBalance(t, l, amex.ID, "0")
	assertConsistent(t, l)
}

func TestSavepoint_RollsBackOnlyItsWrites(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := mustCreate(t, l, "Checking Account", domain.AccountTypeCash, "0")
	boom := errors.New("boom")

	err := l.Batch(ctx, func(u *Unit) error {
		if _, _, err := u.AdjustBalance(ctx, Adjustment{AccountID: a.ID, Amount: d("5"), Kind: domain.ChangeManualAdjustment}); err != nil {
			return err
		}
		err := u.Savepoint(ctx, func() error {
			if _, _, err := u.AdjustBalance(ctx, Adjustment{AccountID: a.ID, Amount: d("7"), Kind: domain.ChangeManualAdjustment}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("Savepoint() error = %v, want boom", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Batch() error: %v", err)
	}
	assertBalance(t, l, a.ID, "5")
	assertConsistent(t, l)
}

func assertBalance(t *testing.T, l *Ledger, id int64, want string) {
	t.Helper()
	a, err := l.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccount(%d) error: %v", id, err)
	}
	if !a.CurrentBalance.Equal(d(want)) {
		t.Errorf("account %d (%s) balance = %s, want %s", id, a.Name, a.CurrentBalance, want)
	}
}
