package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

const historyColumns = `id, account_id, previous_balance, amount_changed, new_balance, change_type,
	related_transaction_id, related_income_id, description, created_at`

func scanHistory(row rowScanner) (*domain.HistoryEntry, error) {
	var (
		h           domain.HistoryEntry
		kind        string
		txID, incID sql.NullInt64
		description sql.NullString
		createdAt   string
	)
	if err := row.Scan(&h.ID, &h.AccountID, &h.PreviousBalance, &h.AmountChanged, &h.NewBalance,
		&kind, &txID, &incID, &description, &createdAt); err != nil {
		return nil, err
	}
	h.ChangeKind = domain.ChangeKind(kind)
	h.RelatedTransactionID = int64Ptr(txID)
	h.RelatedIncomeID = int64Ptr(incID)
	h.Description = description.String

	var err error
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &h, nil
}

// insertHistoryWith appends h and fills in its ID.
func insertHistoryWith(ctx context.Context, q querier, h *domain.HistoryEntry) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO account_history (
			account_id, previous_balance, amount_changed, new_balance, change_type,
			related_transaction_id, related_income_id, description, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.AccountID, h.PreviousBalance, h.AmountChanged, h.NewBalance, string(h.ChangeKind),
		nullInt64(h.RelatedTransactionID), nullInt64(h.RelatedIncomeID), nullString(h.Description),
		formatTime(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("insertHistory: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insertHistory: reading id: %w", err)
	}
	h.ID = id
	return nil
}

func queryHistory(ctx context.Context, q querier, query string, args ...any) ([]*domain.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// listHistoryWith returns an account's entries, newest first.
func listHistoryWith(ctx context.Context, q querier, accountID int64) ([]*domain.HistoryEntry, error) {
	entries, err := queryHistory(ctx, q, `
		SELECT `+historyColumns+` FROM account_history
		WHERE account_id = ?
		ORDER BY id DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listHistory: %w", err)
	}
	return entries, nil
}

func recordColumn(kind domain.RecordKind) (string, error) {
	switch kind {
	case domain.RecordTransaction:
		return "related_transaction_id", nil
	case domain.RecordIncome:
		return "related_income_id", nil
	}
	return "", fmt.Errorf("unknown record kind %q", kind)
}

// listHistoryByRecordWith returns the entries that reference one reconciled
// record, oldest first.
func listHistoryByRecordWith(ctx context.Context, q querier, ref domain.RecordRef) ([]*domain.HistoryEntry, error) {
	col, err := recordColumn(ref.Kind)
	if err != nil {
		return nil, fmt.Errorf("listHistoryByRecord: %w", err)
	}
	entries, err := queryHistory(ctx, q, `
		SELECT `+historyColumns+` FROM account_history
		WHERE `+col+` = ?
		ORDER BY id
	`, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("listHistoryByRecord: %w", err)
	}
	return entries, nil
}

func deleteHistoryByAccountWith(ctx context.Context, q querier, accountID int64) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM account_history WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, fmt.Errorf("deleteHistoryByAccount: %w", err)
	}
	return res.RowsAffected()
}

func deleteHistoryByRecordWith(ctx context.Context, q querier, ref domain.RecordRef) (int64, error) {
	col, err := recordColumn(ref.Kind)
	if err != nil {
		return 0, fmt.Errorf("deleteHistoryByRecord: %w", err)
	}
	res, err := q.ExecContext(ctx, `DELETE FROM account_history WHERE `+col+` = ?`, ref.ID)
	if err != nil {
		return 0, fmt.Errorf("deleteHistoryByRecord: %w", err)
	}
	return res.RowsAffected()
}
