package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, name, account_type, current_balance, associated_methods, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a                    domain.Account
		accountType          string
		methods              string
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.Name, &accountType, &a.CurrentBalance, &methods, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(accountType)

	if methods != "" {
		if err := json.Unmarshal([]byte(methods), &a.AssociatedMethods); err != nil {
			return nil, fmt.Errorf("decoding associated_methods for account %d: %w", a.ID, err)
		}
	}

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeMethods(methods []string) (string, error) {
	if methods == nil {
		methods = []string{}
	}
	b, err := json.Marshal(methods)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// insertAccountWith inserts a and fills in its ID. A name collision is
// reported as domain.ErrDuplicateAccountName.
func insertAccountWith(ctx context.Context, q querier, a *domain.Account) error {
	methods, err := encodeMethods(a.AssociatedMethods)
	if err != nil {
		return fmt.Errorf("insertAccount: encoding methods: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO accounts (name, account_type, current_balance, associated_methods, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.Name, string(a.Type), a.CurrentBalance, methods, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insertAccount: %w: %q", domain.ErrDuplicateAccountName, a.Name)
		}
		return fmt.Errorf("insertAccount: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insertAccount: reading id: %w", err)
	}
	a.ID = id
	return nil
}

// getAccountWith returns nil, nil when no account has the given id.
func getAccountWith(ctx context.Context, q querier, id int64) (*domain.Account, error) {
	a, err := scanAccount(q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getAccount: %w", err)
	}
	return a, nil
}

// getAccountByNameWith returns nil, nil when no account has the given name.
func getAccountByNameWith(ctx context.Context, q querier, name string) (*domain.Account, error) {
	a, err := scanAccount(q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getAccountByName: %w", err)
	}
	return a, nil
}

func queryAccounts(ctx context.Context, q querier, query string, args ...any) ([]*domain.Account, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// listAccountsWith returns every account in ascending id order.
func listAccountsWith(ctx context.Context, q querier) ([]*domain.Account, error) {
	accounts, err := queryAccounts(ctx, q, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listAccounts: %w", err)
	}
	return accounts, nil
}

// listAccountsByTypeWith returns the accounts of one type in ascending id order.
func listAccountsByTypeWith(ctx context.Context, q querier, t domain.AccountType) ([]*domain.Account, error) {
	accounts, err := queryAccounts(ctx, q, `SELECT `+accountColumns+` FROM accounts WHERE account_type = ? ORDER BY id`, string(t))
	if err != nil {
		return nil, fmt.Errorf("listAccountsByType: %w", err)
	}
	return accounts, nil
}

func updateAccountBalanceWith(ctx context.Context, q querier, id int64, balance decimal.Decimal, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE accounts SET current_balance = ?, updated_at = ? WHERE id = ?
	`, balance, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updateAccountBalance: %w", err)
	}
	return expectOneRow(res, "updateAccountBalance", id)
}

// updateAccountDetailsWith rewrites name and associated methods; the balance
// column is never touched here.
func updateAccountDetailsWith(ctx context.Context, q querier, a *domain.Account) error {
	methods, err := encodeMethods(a.AssociatedMethods)
	if err != nil {
		return fmt.Errorf("updateAccountDetails: encoding methods: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE accounts SET name = ?, associated_methods = ?, updated_at = ? WHERE id = ?
	`, a.Name, methods, formatTime(a.UpdatedAt), a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("updateAccountDetails: %w: %q", domain.ErrDuplicateAccountName, a.Name)
		}
		return fmt.Errorf("updateAccountDetails: %w", err)
	}
	return expectOneRow(res, "updateAccountDetails", a.ID)
}

func deleteAccountWith(ctx context.Context, q querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleteAccount: %w", err)
	}
	return expectOneRow(res, "deleteAccount", id)
}

func expectOneRow(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: reading rows affected: %w", op, err)
	}
	if n != 1 {
		return fmt.Errorf("%s: id %d: %d rows affected", op, id, n)
	}
	return nil
}
