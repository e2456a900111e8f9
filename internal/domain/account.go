package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account.
type AccountType string

const (
	AccountTypeCash      AccountType = "cash"
	AccountTypeInvesting AccountType = "investing"
	AccountTypeDebt      AccountType = "debt"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeCash, AccountTypeInvesting, AccountTypeDebt:
		return true
	}
	return false
}

// ChangeKind is the reason recorded on a history entry.
type ChangeKind string

const (
	ChangeInitialBalance   ChangeKind = "initial_balance"
	ChangeTransaction      ChangeKind = "transaction"
	ChangeIncome           ChangeKind = "income"
	ChangeTransfer         ChangeKind = "transfer"
	ChangeManualAdjustment ChangeKind = "manual_adjustment"
	ChangeDebtPayment      ChangeKind = "debt_payment"
)

// Valid reports whether k is one of the known change kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeInitialBalance, ChangeTransaction, ChangeIncome,
		ChangeTransfer, ChangeManualAdjustment, ChangeDebtPayment:
		return true
	}
	return false
}

// Account is a tracked account and its current balance.
// CurrentBalance is derived: it always equals the sum of the account's
// history amounts.
type Account struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Type              AccountType     `json:"account_type"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	AssociatedMethods []string        `json:"associated_methods,omitempty"` // only meaningful for debt accounts
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// HasMethod reports whether method is one of the account's payment-method aliases.
// The comparison is exact.
func (a *Account) HasMethod(method string) bool {
	return slices.Contains(a.AssociatedMethods, method)
}

// HistoryEntry is one immutable balance change.
type HistoryEntry struct {
	ID                   int64           `json:"id"`
	AccountID            int64           `json:"account_id"`
	PreviousBalance      decimal.Decimal `json:"previous_balance"`
	AmountChanged        decimal.Decimal `json:"amount_changed"`
	NewBalance           decimal.Decimal `json:"new_balance"`
	ChangeKind           ChangeKind      `json:"change_type"`
	RelatedTransactionID *int64          `json:"related_transaction_id,omitempty"`
	RelatedIncomeID      *int64          `json:"related_income_id,omitempty"`
	Description          string          `json:"description,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Consistent reports whether NewBalance == PreviousBalance + AmountChanged.
func (h *HistoryEntry) Consistent() bool {
	return h.PreviousBalance.Add(h.AmountChanged).Equal(h.NewBalance)
}
