package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/shopspring/decimal"
)

// Adjustment describes one balance change.
type Adjustment struct {
	AccountID            int64
	Amount               decimal.Decimal
	Kind                 domain.ChangeKind
	RelatedTransactionID *int64
	RelatedIncomeID      *int64
	Description          string
}

// RecordWriter is the part of the store that reconciliation writes records
// through. Balance effects always go through the Unit instead.
type RecordWriter interface {
	InsertTransaction(ctx context.Context, r *domain.TransactionRecord) error
	UpdateTransaction(ctx context.Context, r *domain.TransactionRecord) error
	DeleteTransaction(ctx context.Context, id int64) error
	InsertIncome(ctx context.Context, r *domain.IncomeRecord) error
	UpdateIncome(ctx context.Context, r *domain.IncomeRecord) error
	DeleteIncome(ctx context.Context, id int64) error
	ListExternalTransactions(ctx context.Context) (map[string]*domain.TransactionRecord, error)
	ListExternalIncome(ctx context.Context) (map[string]*domain.IncomeRecord, error)
}

// Unit is one open unit of work. Everything done through it commits or rolls
// back together. A Unit must not be used after the function it was passed to
// returns.
type Unit struct {
	tx        *sqlite.Tx
	now       func() time.Time
	exclusive bool
	owned     map[int64]bool

	// kinds of the mutations made so far, reported once the unit commits.
	mutations []domain.ChangeKind
}

var savepointSeq atomic.Uint64

func newUnit(tx *sqlite.Tx, now func() time.Time, exclusive bool, ids []int64) *Unit {
	u := &Unit{tx: tx, now: now, exclusive: exclusive, owned: make(map[int64]bool, len(ids))}
	for _, id := range ids {
		u.owned[id] = true
	}
	return u
}

func (u *Unit) checkLocked(id int64) error {
	if u.exclusive || u.owned[id] {
		return nil
	}
	return fmt.Errorf("account %d is not locked by this unit of work", id)
}

// Account returns the account with the given id as seen inside the unit.
func (u *Unit) Account(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := u.tx.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: id %d", domain.ErrAccountNotFound, id)
	}
	return a, nil
}

// ListAccountsByType returns the accounts of one type in ascending id order.
func (u *Unit) ListAccountsByType(ctx context.Context, t domain.AccountType) ([]*domain.Account, error) {
	return u.tx.ListAccountsByType(ctx, t)
}

// GetOrCreateAccount returns the account named name, creating it with a zero
// balance and type t if it does not exist. The bool reports whether it was
// created. An existing account is returned as-is even if its type differs.
func (u *Unit) GetOrCreateAccount(ctx context.Context, name string, t domain.AccountType) (*domain.Account, bool, error) {
	if name == "" {
		return nil, false, domain.ErrInvalidAccountName
	}
	if !t.Valid() {
		return nil, false, fmt.Errorf("%w: %q", domain.ErrInvalidAccountType, t)
	}

	existing, err := u.tx.GetAccountByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("GetOrCreateAccount: looking up %q: %w", name, err)
	}
	if existing != nil {
		return existing, false, nil
	}

	now := u.now()
	a := &domain.Account{
		Name:           name,
		Type:           t,
		CurrentBalance: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.tx.InsertAccount(ctx, a); err != nil {
		if !errors.Is(err, domain.ErrDuplicateAccountName) {
			return nil, false, fmt.Errorf("GetOrCreateAccount: creating %q: %w", name, err)
		}
		existing, err := u.tx.GetAccountByName(ctx, name)
		if err != nil || existing == nil {
			return nil, false, fmt.Errorf("GetOrCreateAccount: re-reading %q: %w", name, err)
		}
		return existing, false, nil
	}
	u.owned[a.ID] = true
	return a, true, nil
}

func (u *Unit) insertAccount(ctx context.Context, a *domain.Account) error {
	if err := u.tx.InsertAccount(ctx, a); err != nil {
		return err
	}
	u.owned[a.ID] = true
	return nil
}

// AdjustBalance applies adj to its account and appends the history entry.
func (u *Unit) AdjustBalance(ctx context.Context, adj Adjustment) (*domain.Account, *domain.HistoryEntry, error) {
	if !adj.Kind.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrInvalidChangeKind, adj.Kind)
	}
	if adj.Amount.IsZero() && adj.Kind != domain.ChangeInitialBalance {
		return nil, nil, fmt.Errorf("%w: zero %s adjustment", domain.ErrInvalidAmount, adj.Kind)
	}
	if err := u.checkLocked(adj.AccountID); err != nil {
		return nil, nil, err
	}

	a, err := u.Account(ctx, adj.AccountID)
	if err != nil {
		return nil, nil, err
	}

	now := u.now()
	entry := &domain.HistoryEntry{
		AccountID:            a.ID,
		PreviousBalance:      a.CurrentBalance,
		AmountChanged:        adj.Amount,
		NewBalance:           a.CurrentBalance.Add(adj.Amount),
		ChangeKind:           adj.Kind,
		RelatedTransactionID: adj.RelatedTransactionID,
		RelatedIncomeID:      adj.RelatedIncomeID,
		Description:          adj.Description,
		CreatedAt:            now,
	}

	if err := u.tx.UpdateAccountBalance(ctx, a.ID, entry.NewBalance, now); err != nil {
		return nil, nil, err
	}
	if err := u.tx.InsertHistory(ctx, entry); err != nil {
		return nil, nil, err
	}

	a.CurrentBalance = entry.NewBalance
	a.UpdatedAt = now
	u.mutations = append(u.mutations, adj.Kind)
	return a, entry, nil
}

func relatedIDs(ref domain.RecordRef) (txID, incomeID *int64) {
	id := ref.ID
	if ref.Kind == domain.RecordIncome {
		return nil, &id
	}
	return &id, nil
}

// recordEffect sums the history amounts that reference ref, per account.
func (u *Unit) recordEffect(ctx context.Context, ref domain.RecordRef) (map[int64]decimal.Decimal, error) {
	entries, err := u.tx.ListHistoryByRecord(ctx, ref)
	if err != nil {
		return nil, err
	}
	effect := make(map[int64]decimal.Decimal)
	for _, e := range entries {
		effect[e.AccountID] = effect[e.AccountID].Add(e.AmountChanged)
	}
	return effect, nil
}

// SettleRecord makes the net balance effect of ref equal to delta on target
// and zero on every other account. Existing entries are never rewritten; the
// difference is appended as compensating entries of the given kind. A nil
// target settles the record to no effect at all.
func (u *Unit) SettleRecord(ctx context.Context, ref domain.RecordRef, target *domain.Account, delta decimal.Decimal, kind domain.ChangeKind, description string) error {
	current, err := u.recordEffect(ctx, ref)
	if err != nil {
		return fmt.Errorf("SettleRecord: reading effect of %s %d: %w", ref.Kind, ref.ID, err)
	}

	desired := make(map[int64]decimal.Decimal)
	if target != nil && !delta.IsZero() {
		desired[target.ID] = delta
	}

	ids := make([]int64, 0, len(current)+len(desired))
	for id := range current {
		ids = append(ids, id)
	}
	for id := range desired {
		if _, ok := current[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	txID, incomeID := relatedIDs(ref)
	for _, id := range ids {
		diff := desired[id].Sub(current[id])
		if diff.IsZero() {
			continue
		}
		if _, _, err := u.AdjustBalance(ctx, Adjustment{
			AccountID:            id,
			Amount:               diff,
			Kind:                 kind,
			RelatedTransactionID: txID,
			RelatedIncomeID:      incomeID,
			Description:          description,
		}); err != nil {
			return fmt.Errorf("SettleRecord: adjusting account %d: %w", id, err)
		}
	}
	return nil
}

// ReleaseRecord removes every history entry that references ref and takes
// their sum back out of the affected balances, so the record can be deleted.
func (u *Unit) ReleaseRecord(ctx context.Context, ref domain.RecordRef) error {
	effect, err := u.recordEffect(ctx, ref)
	if err != nil {
		return fmt.Errorf("ReleaseRecord: reading effect of %s %d: %w", ref.Kind, ref.ID, err)
	}

	ids := make([]int64, 0, len(effect))
	for id := range effect {
		if err := u.checkLocked(id); err != nil {
			return fmt.Errorf("ReleaseRecord: %w", err)
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if _, err := u.tx.DeleteHistoryByRecord(ctx, ref); err != nil {
		return fmt.Errorf("ReleaseRecord: %w", err)
	}

	now := u.now()
	for _, id := range ids {
		a, err := u.Account(ctx, id)
		if err != nil {
			return fmt.Errorf("ReleaseRecord: %w", err)
		}
		if err := u.tx.UpdateAccountBalance(ctx, id, a.CurrentBalance.Sub(effect[id]), now); err != nil {
			return fmt.Errorf("ReleaseRecord: %w", err)
		}
	}
	return nil
}

// Records returns the record store of the unit.
func (u *Unit) Records() RecordWriter {
	return u.tx
}

// Savepoint runs fn so that, if it fails, only its own writes are undone and
// the unit stays usable. fn's error is returned unchanged.
func (u *Unit) Savepoint(ctx context.Context, fn func() error) error {
	name := "sp_" + strconv.FormatUint(savepointSeq.Add(1), 10)
	if err := u.tx.Savepoint(ctx, name); err != nil {
		return err
	}

	mark := len(u.mutations)
	owned := make([]int64, 0)
	for id := range u.owned {
		owned = append(owned, id)
	}

	if err := fn(); err != nil {
		u.mutations = u.mutations[:mark]
		u.owned = make(map[int64]bool, len(owned))
		for _, id := range owned {
			u.owned[id] = true
		}
		if rbErr := u.tx.RollbackToSavepoint(ctx, name); rbErr != nil {
			return fmt.Errorf("Savepoint: rolling back after %v: %w", err, rbErr)
		}
		return err
	}
	return u.tx.ReleaseSavepoint(ctx, name)
}
