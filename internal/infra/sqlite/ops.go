package sqlite

import (
	"context"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Reads outside a unit of work. Writes only happen through Tx.

// GetAccount returns nil, nil if the account does not exist.
func (d *DB) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return getAccountWith(ctx, d.db, id)
}

// GetAccountByName returns nil, nil if the account does not exist.
func (d *DB) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	return getAccountByNameWith(ctx, d.db, name)
}

func (d *DB) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return listAccountsWith(ctx, d.db)
}

func (d *DB) ListAccountsByType(ctx context.Context, t domain.AccountType) ([]*domain.Account, error) {
	return listAccountsByTypeWith(ctx, d.db, t)
}

// ListHistory returns an account's history, newest first.
func (d *DB) ListHistory(ctx context.Context, accountID int64) ([]*domain.HistoryEntry, error) {
	return listHistoryWith(ctx, d.db, accountID)
}

func (d *DB) ListHistoryByRecord(ctx context.Context, ref domain.RecordRef) ([]*domain.HistoryEntry, error) {
	return listHistoryByRecordWith(ctx, d.db, ref)
}

func (d *DB) GetTransaction(ctx context.Context, id int64) (*domain.TransactionRecord, error) {
	return getTransactionWith(ctx, d.db, id)
}

func (d *DB) GetIncome(ctx context.Context, id int64) (*domain.IncomeRecord, error) {
	return getIncomeWith(ctx, d.db, id)
}

// ListTransactions returns transactions dated in [start, end); zero bounds are open.
func (d *DB) ListTransactions(ctx context.Context, start, end time.Time) ([]*domain.TransactionRecord, error) {
	return listTransactionsWith(ctx, d.db, start, end)
}

// ListIncome returns income rows, optionally for one account name.
func (d *DB) ListIncome(ctx context.Context, account string) ([]*domain.IncomeRecord, error) {
	return listIncomeWith(ctx, d.db, account)
}

func (d *DB) ListExternalTransactions(ctx context.Context) (map[string]*domain.TransactionRecord, error) {
	return listExternalTransactionsWith(ctx, d.db)
}

func (d *DB) ListExternalIncome(ctx context.Context) (map[string]*domain.IncomeRecord, error) {
	return listExternalIncomeWith(ctx, d.db)
}

// Accounts

func (t *Tx) InsertAccount(ctx context.Context, a *domain.Account) error {
	return insertAccountWith(ctx, t.tx, a)
}

func (t *Tx) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return getAccountWith(ctx, t.tx, id)
}

func (t *Tx) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	return getAccountByNameWith(ctx, t.tx, name)
}

func (t *Tx) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return listAccountsWith(ctx, t.tx)
}

func (t *Tx) ListAccountsByType(ctx context.Context, at domain.AccountType) ([]*domain.Account, error) {
	return listAccountsByTypeWith(ctx, t.tx, at)
}

func (t *Tx) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal, at time.Time) error {
	return updateAccountBalanceWith(ctx, t.tx, id, balance, at)
}

func (t *Tx) UpdateAccountDetails(ctx context.Context, a *domain.Account) error {
	return updateAccountDetailsWith(ctx, t.tx, a)
}

func (t *Tx) DeleteAccount(ctx context.Context, id int64) error {
	return deleteAccountWith(ctx, t.tx, id)
}

// History

func (t *Tx) InsertHistory(ctx context.Context, h *domain.HistoryEntry) error {
	return insertHistoryWith(ctx, t.tx, h)
}

func (t *Tx) ListHistory(ctx context.Context, accountID int64) ([]*domain.HistoryEntry, error) {
	return listHistoryWith(ctx, t.tx, accountID)
}

func (t *Tx) ListHistoryByRecord(ctx context.Context, ref domain.RecordRef) ([]*domain.HistoryEntry, error) {
	return listHistoryByRecordWith(ctx, t.tx, ref)
}

func (t *Tx) DeleteHistoryByAccount(ctx context.Context, accountID int64) (int64, error) {
	return deleteHistoryByAccountWith(ctx, t.tx, accountID)
}

func (t *Tx) DeleteHistoryByRecord(ctx context.Context, ref domain.RecordRef) (int64, error) {
	return deleteHistoryByRecordWith(ctx, t.tx, ref)
}

// Records

func (t *Tx) InsertTransaction(ctx context.Context, r *domain.TransactionRecord) error {
	return insertTransactionWith(ctx, t.tx, r)
}

func (t *Tx) UpdateTransaction(ctx context.Context, r *domain.TransactionRecord) error {
	return updateTransactionWith(ctx, t.tx, r)
}

func (t *Tx) DeleteTransaction(ctx context.Context, id int64) error {
	return deleteTransactionWith(ctx, t.tx, id)
}

func (t *Tx) InsertIncome(ctx context.Context, r *domain.IncomeRecord) error {
	return insertIncomeWith(ctx, t.tx, r)
}

func (t *Tx) UpdateIncome(ctx context.Context, r *domain.IncomeRecord) error {
	return updateIncomeWith(ctx, t.tx, r)
}

func (t *Tx) DeleteIncome(ctx context.Context, id int64) error {
	return deleteIncomeWith(ctx, t.tx, id)
}

func (t *Tx) ListExternalTransactions(ctx context.Context) (map[string]*domain.TransactionRecord, error) {
	return listExternalTransactionsWith(ctx, t.tx)
}

func (t *Tx) ListExternalIncome(ctx context.Context) (map[string]*domain.IncomeRecord, error) {
	return listExternalIncomeWith(ctx, t.tx)
}
