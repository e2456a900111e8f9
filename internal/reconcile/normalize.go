package reconcile

import (
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Substitutes for missing source values.
const (
	defaultName     = "N/A"
	defaultCategory = "N/A"
	defaultMethod   = "N/A"
)

// record is a source record with every field filled in.
type record struct {
	ExternalID  string
	Name        string
	Amount      decimal.Decimal
	Date        time.Time
	Category    string
	SubCategory string
	Method      string

	// DateDefaulted is set when the source had no date and now was used.
	// Such a date is never compared against a stored one.
	DateDefaulted bool
}

// normalize fills in defaults for missing fields and returns the names of the
// fields it had to default.
func normalize(raw domain.RawRecord, now time.Time) (record, []string) {
	var defaulted []string
	r := record{ExternalID: raw.ExternalID}

	if raw.Name != nil && *raw.Name != "" {
		r.Name = *raw.Name
	} else {
		r.Name = defaultName
		defaulted = append(defaulted, "name")
	}

	if raw.Amount != nil {
		r.Amount = *raw.Amount
	} else {
		r.Amount = decimal.Zero
		defaulted = append(defaulted, "amount")
	}

	if raw.Date != nil && !raw.Date.IsZero() {
		r.Date = raw.Date.UTC()
	} else {
		r.Date = now
		r.DateDefaulted = true
		defaulted = append(defaulted, "date")
	}

	if raw.Category != nil && *raw.Category != "" {
		r.Category = *raw.Category
	} else {
		r.Category = defaultCategory
		defaulted = append(defaulted, "category")
	}

	if raw.Method != nil && *raw.Method != "" {
		r.Method = *raw.Method
	} else {
		r.Method = defaultMethod
		defaulted = append(defaulted, "method")
	}

	if raw.SubCategory != nil && *raw.SubCategory != "" {
		r.SubCategory = *raw.SubCategory
	} else {
		r.SubCategory = r.Category
		defaulted = append(defaulted, "sub_category")
	}

	return r, defaulted
}
