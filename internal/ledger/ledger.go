// Package ledger owns account balances. Every balance change goes through a
// Unit, which updates the balance and appends the matching history entry in
// the same SQL transaction while holding the account's lock.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger is the account ledger. It is safe for concurrent use.
type Ledger struct {
	db    *sqlite.DB
	locks *accountLocks
	log   zerolog.Logger
	now   func() time.Time
}

// New returns a ledger backed by db.
func New(db *sqlite.DB, log zerolog.Logger) *Ledger {
	return &Ledger{
		db:    db,
		locks: newAccountLocks(),
		log:   log.With().Str("component", "ledger").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Update locks accountIDs and runs fn in one unit of work. fn may only mutate
// the locked accounts and any account it creates itself.
func (l *Ledger) Update(ctx context.Context, accountIDs []int64, fn func(*Unit) error) error {
	ids, unlock := l.locks.lock(accountIDs)
	defer unlock()
	return l.run(ctx, false, ids, fn)
}

// Batch runs fn in one unit of work that excludes every other mutation, so fn
// may touch any account.
func (l *Ledger) Batch(ctx context.Context, fn func(*Unit) error) error {
	unlock := l.locks.lockAll()
	defer unlock()
	return l.run(ctx, true, nil, fn)
}

func (l *Ledger) run(ctx context.Context, exclusive bool, ids []int64, fn func(*Unit) error) error {
	var u *Unit
	err := l.db.InTx(ctx, func(tx *sqlite.Tx) error {
		u = newUnit(tx, l.now, exclusive, ids)
		return fn(u)
	})
	if err != nil {
		return err
	}
	for _, kind := range u.mutations {
		metrics.LedgerMutations.WithLabelValues(string(kind)).Inc()
	}
	return nil
}

// NewAccount describes an account to create.
type NewAccount struct {
	Name              string
	Type              domain.AccountType
	InitialBalance    decimal.Decimal
	AssociatedMethods []string
}

// CreateAccount creates an account. A non-zero initial balance is recorded as
// an initial_balance history entry.
func (l *Ledger) CreateAccount(ctx context.Context, req NewAccount) (*domain.Account, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidAccountName
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAccountType, req.Type)
	}

	var created *domain.Account
	err := l.Update(ctx, nil, func(u *Unit) error {
		now := l.now()
		a := &domain.Account{
			Name:              name,
			Type:              req.Type,
			CurrentBalance:    decimal.Zero,
			AssociatedMethods: req.AssociatedMethods,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := u.insertAccount(ctx, a); err != nil {
			return err
		}

		if !req.InitialBalance.IsZero() {
			updated, _, err := u.AdjustBalance(ctx, Adjustment{
				AccountID:   a.ID,
				Amount:      req.InitialBalance,
				Kind:        domain.ChangeInitialBalance,
				Description: "Initial balance",
			})
			if err != nil {
				return err
			}
			a = updated
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	l.log.Info().
		Int64("account_id", created.ID).
		Str("name", created.Name).
		Str("type", string(created.Type)).
		Str("balance", created.CurrentBalance.String()).
		Msg("Account created")
	return created, nil
}

// GetAccount returns domain.ErrAccountNotFound if the account does not exist.
func (l *Ledger) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := l.db.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("GetAccount: %w: id %d", domain.ErrAccountNotFound, id)
	}
	return a, nil
}

// GetAccountByName returns domain.ErrAccountNotFound if the account does not exist.
func (l *Ledger) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	a, err := l.db.GetAccountByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("GetAccountByName: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("GetAccountByName: %w: %q", domain.ErrAccountNotFound, name)
	}
	return a, nil
}

func (l *Ledger) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return l.db.ListAccounts(ctx)
}

func (l *Ledger) ListAccountsByType(ctx context.Context, t domain.AccountType) ([]*domain.Account, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("ListAccountsByType: %w: %q", domain.ErrInvalidAccountType, t)
	}
	return l.db.ListAccountsByType(ctx, t)
}

// AccountUpdate carries the details to change. Nil fields are left alone.
type AccountUpdate struct {
	Name              *string
	AssociatedMethods []string
}

// UpdateAccount changes an account's name or payment-method aliases. The
// balance can only change through AdjustBalance.
func (l *Ledger) UpdateAccount(ctx context.Context, id int64, upd AccountUpdate) (*domain.Account, error) {
	var updated *domain.Account
	err := l.Update(ctx, []int64{id}, func(u *Unit) error {
		a, err := u.Account(ctx, id)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return domain.ErrInvalidAccountName
			}
			a.Name = name
		}
		if upd.AssociatedMethods != nil {
			a.AssociatedMethods = upd.AssociatedMethods
		}
		a.UpdatedAt = l.now()
		if err := u.tx.UpdateAccountDetails(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}
	return updated, nil
}

// DeleteAccount removes an account together with its history.
func (l *Ledger) DeleteAccount(ctx context.Context, id int64) error {
	var removed int64
	err := l.Update(ctx, []int64{id}, func(u *Unit) error {
		if _, err := u.Account(ctx, id); err != nil {
			return err
		}
		n, err := u.tx.DeleteHistoryByAccount(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return u.tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}

	l.log.Info().Int64("account_id", id).Int64("history_entries", removed).Msg("Account deleted")
	return nil
}

// AdjustBalance applies one balance change under the account's lock.
func (l *Ledger) AdjustBalance(ctx context.Context, adj Adjustment) (*domain.Account, *domain.HistoryEntry, error) {
	var (
		account *domain.Account
		entry   *domain.HistoryEntry
	)
	err := l.Update(ctx, []int64{adj.AccountID}, func(u *Unit) error {
		var err error
		account, entry, err = u.AdjustBalance(ctx, adj)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("AdjustBalance: %w", err)
	}

	l.log.Debug().
		Int64("account_id", account.ID).
		Str("kind", string(adj.Kind)).
		Str("amount", adj.Amount.String()).
		Str("balance", account.CurrentBalance.String()).
		Msg("Balance adjusted")
	return account, entry, nil
}

// ManualAdjustment is AdjustBalance with kind manual_adjustment.
func (l *Ledger) ManualAdjustment(ctx context.Context, id int64, amount decimal.Decimal, description string) (*domain.Account, *domain.HistoryEntry, error) {
	if description == "" {
		description = "Manual adjustment"
	}
	return l.AdjustBalance(ctx, Adjustment{
		AccountID:   id,
		Amount:      amount,
		Kind:        domain.ChangeManualAdjustment,
		Description: description,
	})
}

// History returns an account's history, newest first.
func (l *Ledger) History(ctx context.Context, accountID int64) ([]*domain.HistoryEntry, error) {
	if _, err := l.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	entries, err := l.db.ListHistory(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return entries, nil
}

// GetOrCreateAccount returns the named account, creating it with a zero
// balance if needed. The bool reports whether it was created.
func (l *Ledger) GetOrCreateAccount(ctx context.Context, name string, t domain.AccountType) (*domain.Account, bool, error) {
	var (
		account *domain.Account
		created bool
	)
	err := l.Update(ctx, nil, func(u *Unit) error {
		var err error
		account, created, err = u.GetOrCreateAccount(ctx, name, t)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		l.log.Info().Int64("account_id", account.ID).Str("name", name).Msg("Account created on demand")
	}
	return account, created, nil
}

// Discrepancy is an account whose stored state disagrees with its history.
type Discrepancy struct {
	AccountID   int64           `json:"account_id"`
	AccountName string          `json:"account_name"`
	Balance     decimal.Decimal `json:"balance"`
	HistorySum  decimal.Decimal `json:"history_sum"`
	BadEntries  []int64         `json:"bad_entries,omitempty"`
}

// Verify checks that every balance equals the sum of its history and that
// every entry is internally consistent. It holds the exclusive lock so the
// audit sees a quiet ledger.
func (l *Ledger) Verify(ctx context.Context) ([]Discrepancy, error) {
	var out []Discrepancy
	err := l.Batch(ctx, func(u *Unit) error {
		accounts, err := u.tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			entries, err := u.tx.ListHistory(ctx, a.ID)
			if err != nil {
				return err
			}
			sum := decimal.Zero
			var bad []int64
			for _, e := range entries {
				sum = sum.Add(e.AmountChanged)
				if !e.Consistent() {
					bad = append(bad, e.ID)
				}
			}
			if !sum.Equal(a.CurrentBalance) || len(bad) > 0 {
				out = append(out, Discrepancy{
					AccountID:   a.ID,
					AccountName: a.Name,
					Balance:     a.CurrentBalance,
					HistorySum:  sum,
					BadEntries:  bad,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}
	if len(out) > 0 {
		l.log.Warn().Int("accounts", len(out)).Msg("Ledger verification found discrepancies")
	}
	return out, nil
}
