package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

const transactionColumns = `id, external_id, name, amount, date, category, sub_category, method, created_at, updated_at`

const incomeColumns = `id, external_id, name, amount, date_received, account, created_at, updated_at`

func scanTransaction(row rowScanner) (*domain.TransactionRecord, error) {
	var (
		r                          domain.TransactionRecord
		externalID                 sql.NullString
		date, createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &externalID, &r.Name, &r.Amount, &date,
		&r.Category, &r.SubCategory, &r.Method, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.ExternalID = externalID.String

	var err error
	if r.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanIncome(row rowScanner) (*domain.IncomeRecord, error) {
	var (
		r                          domain.IncomeRecord
		externalID                 sql.NullString
		date, createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &externalID, &r.Name, &r.Amount, &date,
		&r.Account, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.ExternalID = externalID.String

	var err error
	if r.DateReceived, err = parseTime(date); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// insertTransactionWith stores r and fills in its ID.
func insertTransactionWith(ctx context.Context, q querier, r *domain.TransactionRecord) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO transactions (external_id, name, amount, date, category, sub_category, method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullString(r.ExternalID), r.Name, r.Amount, formatTime(r.Date), r.Category, r.SubCategory, r.Method,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insertTransaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insertTransaction: reading id: %w", err)
	}
	r.ID = id
	return nil
}

func updateTransactionWith(ctx context.Context, q querier, r *domain.TransactionRecord) error {
	res, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET name = ?, amount = ?, date = ?, category = ?, sub_category = ?, method = ?, updated_at = ?
		WHERE id = ?
	`, r.Name, r.Amount, formatTime(r.Date), r.Category, r.SubCategory, r.Method, formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("updateTransaction: %w", err)
	}
	return expectOneRow(res, "updateTransaction", r.ID)
}

func deleteTransactionWith(ctx context.Context, q querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleteTransaction: %w", err)
	}
	return expectOneRow(res, "deleteTransaction", id)
}

// getTransactionWith returns nil, nil when no transaction has the given id.
func getTransactionWith(ctx context.Context, q querier, id int64) (*domain.TransactionRecord, error) {
	r, err := scanTransaction(q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	return r, nil
}

func insertIncomeWith(ctx context.Context, q querier, r *domain.IncomeRecord) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO income (external_id, name, amount, date_received, account, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, nullString(r.ExternalID), r.Name, r.Amount, formatTime(r.DateReceived), r.Account,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insertIncome: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insertIncome: reading id: %w", err)
	}
	r.ID = id
	return nil
}

func updateIncomeWith(ctx context.Context, q querier, r *domain.IncomeRecord) error {
	res, err := q.ExecContext(ctx, `
		UPDATE income
		SET name = ?, amount = ?, date_received = ?, account = ?, updated_at = ?
		WHERE id = ?
	`, r.Name, r.Amount, formatTime(r.DateReceived), r.Account, formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("updateIncome: %w", err)
	}
	return expectOneRow(res, "updateIncome", r.ID)
}

func deleteIncomeWith(ctx context.Context, q querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM income WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleteIncome: %w", err)
	}
	return expectOneRow(res, "deleteIncome", id)
}

// getIncomeWith returns nil, nil when no income row has the given id.
func getIncomeWith(ctx context.Context, q querier, id int64) (*domain.IncomeRecord, error) {
	r, err := scanIncome(q.QueryRowContext(ctx, `SELECT `+incomeColumns+` FROM income WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getIncome: %w", err)
	}
	return r, nil
}

// listExternalTransactionsWith returns every transaction that carries an
// external id, keyed by it.
func listExternalTransactionsWith(ctx context.Context, q querier) (map[string]*domain.TransactionRecord, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE external_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("listExternalTransactions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.TransactionRecord)
	for rows.Next() {
		r, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("listExternalTransactions: scanning: %w", err)
		}
		out[r.ExternalID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listExternalTransactions: %w", err)
	}
	return out, nil
}

// listExternalIncomeWith returns every income row that carries an external
// id, keyed by it.
func listExternalIncomeWith(ctx context.Context, q querier) (map[string]*domain.IncomeRecord, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+incomeColumns+` FROM income WHERE external_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("listExternalIncome: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.IncomeRecord)
	for rows.Next() {
		r, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("listExternalIncome: scanning: %w", err)
		}
		out[r.ExternalID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listExternalIncome: %w", err)
	}
	return out, nil
}

// listTransactionsWith returns transactions dated in [start, end), newest
// first. A zero bound is open.
func listTransactionsWith(ctx context.Context, q querier, start, end time.Time) ([]*domain.TransactionRecord, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1 = 1`
	var args []any
	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, formatTime(start))
	}
	if !end.IsZero() {
		query += ` AND date < ?`
		args = append(args, formatTime(end))
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listTransactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.TransactionRecord
	for rows.Next() {
		r, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("listTransactions: scanning: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// listIncomeWith returns income rows newest first, optionally restricted to
// one account name.
func listIncomeWith(ctx context.Context, q querier, account string) ([]*domain.IncomeRecord, error) {
	query := `SELECT ` + incomeColumns + ` FROM income`
	var args []any
	if account != "" {
		query += ` WHERE account = ?`
		args = append(args, account)
	}
	query += ` ORDER BY date_received DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listIncome: %w", err)
	}
	defer rows.Close()

	var out []*domain.IncomeRecord
	for rows.Next() {
		r, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("listIncome: scanning: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
