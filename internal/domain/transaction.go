package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is one locally stored expense row.
// ExternalID is the natural key used by reconciliation; empty means the row
// was not sourced externally and reconciliation never touches it.
type TransactionRecord struct {
	ID          int64           `json:"id"`
	ExternalID  string          `json:"external_id,omitempty"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"` // signed as entered in the source
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"` // defaults to Category at normalization
	Method      string          `json:"method"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IncomeRecord is one locally stored income row.
type IncomeRecord struct {
	ID           int64           `json:"id"`
	ExternalID   string          `json:"external_id,omitempty"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"` // always positive
	DateReceived time.Time       `json:"date_received"`
	Account      string          `json:"account"` // name of the account the income was attributed to
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RawRecord is a record as supplied by the external source.
// Nil fields were empty in the source.
type RawRecord struct {
	ExternalID  string           `json:"external_id"`
	Name        *string          `json:"name,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Date        *time.Time       `json:"date,omitempty"`
	Method      *string          `json:"method,omitempty"`
	Category    *string          `json:"category,omitempty"`
	SubCategory *string          `json:"sub_category,omitempty"`
}

// RecordKind names the local table a reconciled record lives in.
type RecordKind string

const (
	RecordTransaction RecordKind = "transaction"
	RecordIncome      RecordKind = "income"
)

// RecordRef points at a locally stored reconciled record.
type RecordRef struct {
	Kind RecordKind
	ID   int64
}
