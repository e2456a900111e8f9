package reconcile

import (
	"slices"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("complete record", func(t *testing.T) {
		r, defaulted := normalize(raw("p1", "Lunch", "12", "Debit", "Food"), now)
		if slices.Contains(defaulted, "name") || r.Name != "Lunch" {
			t.Errorf("name = %q, defaulted = %v", r.Name, defaulted)
		}
		if !slices.Equal(defaulted, []string{"sub_category"}) {
			t.Errorf("defaulted = %v, want [sub_category]", defaulted)
		}
		if r.SubCategory != "Food" {
			t.Errorf("SubCategory = %q, want category", r.SubCategory)
		}
		if r.DateDefaulted || !r.Date.Equal(testDate) {
			t.Errorf("date = %v (defaulted %v)", r.Date, r.DateDefaulted)
		}
	})

	t.Run("empty record", func(t *testing.T) {
		r, defaulted := normalize(domain.RawRecord{ExternalID: "p1"}, now)
		want := []string{"name", "amount", "date", "category", "method", "sub_category"}
		if !slices.Equal(defaulted, want) {
			t.Errorf("defaulted = %v, want %v", defaulted, want)
		}
		if r.Name != "N/A" || r.Category != "N/A" || r.Method != "N/A" || r.SubCategory != "N/A" {
			t.Errorf("record = %+v", r)
		}
		if !r.Amount.IsZero() || !r.Date.Equal(now) || !r.DateDefaulted {
			t.Errorf("amount = %s, date = %v, defaulted = %v", r.Amount, r.Date, r.DateDefaulted)
		}
	})

	t.Run("explicit sub category kept", func(t *testing.T) {
		in := raw("p1", "Lunch", "12", "Debit", "Food")
		in.SubCategory = strp("Restaurants")
		r, defaulted := normalize(in, now)
		if r.SubCategory != "Restaurants" || len(defaulted) != 0 {
			t.Errorf("SubCategory = %q, defaulted = %v", r.SubCategory, defaulted)
		}
	})
}

func TestDiff(t *testing.T) {
	stored := func(id, name, amount, method, category string) *domain.TransactionRecord {
		return &domain.TransactionRecord{
			ID: 1, ExternalID: id, Name: name, Amount: decimal.RequireFromString(amount),
			Date: testDate, Category: category, SubCategory: category, Method: method,
		}
	}
	snap := func(records ...domain.RawRecord) []record {
		var out []record
		for _, r := range records {
			n, _ := normalize(r, testDate)
			out = append(out, n)
		}
		return out
	}

	tests := []struct {
		name          string
		snapshot      []record
		transactions  map[string]*domain.TransactionRecord
		income        map[string]*domain.IncomeRecord
		wantCreates   int
		wantUpdates   int
		wantDeletes   int
		wantUnchanged int
		wantFields    []string
	}{
		{
			name:        "new record",
			snapshot:    snap(raw("p1", "Lunch", "12", "Debit", "Food")),
			wantCreates: 1,
		},
		{
			name:          "unchanged",
			snapshot:      snap(raw("p1", "Lunch", "12", "Debit", "Food")),
			transactions:  map[string]*domain.TransactionRecord{"p1": stored("p1", "Lunch", "12.00", "Debit", "Food")},
			wantUnchanged: 1,
		},
		{
			name:         "amount and method changed",
			snapshot:     snap(raw("p1", "Lunch", "15", "Venmo", "Food")),
			transactions: map[string]*domain.TransactionRecord{"p1": stored("p1", "Lunch", "12", "Debit", "Food")},
			wantUpdates:  1,
			wantFields:   []string{"amount", "method"},
		},
		{
			name:         "category becomes income",
			snapshot:     snap(raw("p1", "Lunch", "12", "Debit", "income")),
			transactions: map[string]*domain.TransactionRecord{"p1": stored("p1", "Lunch", "12", "Debit", "Food")},
			wantUpdates:  1,
			wantFields:   []string{"kind"},
		},
		{
			name:     "income account follows method",
			snapshot: snap(raw("p1", "Interest", "-5", "Apple HYSA", "income")),
			income: map[string]*domain.IncomeRecord{"p1": {
				ID: 2, ExternalID: "p1", Name: "Interest", Amount: decimal.NewFromInt(5),
				DateReceived: testDate, Account: "Checking Account",
			}},
			wantUpdates: 1,
			wantFields:  []string{"account"},
		},
		{
			name:         "missing from snapshot",
			snapshot:     nil,
			transactions: map[string]*domain.TransactionRecord{"p1": stored("p1", "Lunch", "12", "Debit", "Food")},
			wantDeletes:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := diff(tt.snapshot, tt.transactions, tt.income, "income")
			if len(p.creates) != tt.wantCreates || len(p.updates) != tt.wantUpdates ||
				len(p.deletes) != tt.wantDeletes || p.unchanged != tt.wantUnchanged {
				t.Fatalf("plan = %d creates, %d updates, %d deletes, %d unchanged",
					len(p.creates), len(p.updates), len(p.deletes), p.unchanged)
			}
			if tt.wantFields != nil {
				if got := p.updates[0].changes.Fields(); !slices.Equal(got, tt.wantFields) {
					t.Errorf("Fields() = %v, want %v", got, tt.wantFields)
				}
			}
		})
	}
}

func TestDiff_DefaultedDateIsNotAChange(t *testing.T) {
	in := raw("p1", "Lunch", "12", "Debit", "Food")
	in.Date = nil
	r, _ := normalize(in, time.Now())

	stored := map[string]*domain.TransactionRecord{"p1": {
		ID: 1, ExternalID: "p1", Name: "Lunch", Amount: decimal.NewFromInt(12),
		Date: testDate, Category: "Food", SubCategory: "Food", Method: "Debit",
	}}
	p := diff([]record{r}, stored, nil, "income")
	if p.unchanged != 1 {
		t.Errorf("unchanged = %d, want 1", p.unchanged)
	}
}
