package reconcile

import (
	"sort"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// local is a stored reconciled record, from either table.
type local struct {
	Kind        domain.RecordKind
	Transaction *domain.TransactionRecord
	Income      *domain.IncomeRecord
}

func (l local) ref() domain.RecordRef {
	if l.Kind == domain.RecordIncome {
		return domain.RecordRef{Kind: domain.RecordIncome, ID: l.Income.ID}
	}
	return domain.RecordRef{Kind: domain.RecordTransaction, ID: l.Transaction.ID}
}

func (l local) name() string {
	if l.Kind == domain.RecordIncome {
		return l.Income.Name
	}
	return l.Transaction.Name
}

// changeSet lists the fields of a stored record that differ from the source.
type changeSet struct {
	Kind        bool // record moves between the transactions and income tables
	Name        bool
	Amount      bool
	Date        bool
	Category    bool
	SubCategory bool
	Method      bool
	Account     bool
}

func (c changeSet) Any() bool {
	return c.Kind || c.Name || c.Amount || c.Date || c.Category || c.SubCategory || c.Method || c.Account
}

// Fields returns the names of the changed fields, for logging.
func (c changeSet) Fields() []string {
	var f []string
	for _, x := range []struct {
		set  bool
		name string
	}{
		{c.Kind, "kind"},
		{c.Name, "name"},
		{c.Amount, "amount"},
		{c.Date, "date"},
		{c.Category, "category"},
		{c.SubCategory, "sub_category"},
		{c.Method, "method"},
		{c.Account, "account"},
	} {
		if x.set {
			f = append(f, x.name)
		}
	}
	return f
}

type update struct {
	rec     record
	local   local
	changes changeSet
}

// plan is the set of writes that brings local storage in line with a snapshot.
type plan struct {
	deletes   []local
	creates   []record
	updates   []update
	unchanged int
}

// kindOf decides which table a source record belongs in.
func kindOf(r record, incomeCategory string) domain.RecordKind {
	if r.Category == incomeCategory {
		return domain.RecordIncome
	}
	return domain.RecordTransaction
}

// diff compares a snapshot with the stored records. A stored external id
// present in both tables keeps its transaction row; the income row is deleted.
func diff(snapshot []record, transactions map[string]*domain.TransactionRecord, income map[string]*domain.IncomeRecord, incomeCategory string) plan {
	stored := make(map[string]local, len(transactions)+len(income))
	var p plan

	for id, r := range income {
		stored[id] = local{Kind: domain.RecordIncome, Income: r}
	}
	for id, r := range transactions {
		if dup, ok := stored[id]; ok {
			p.deletes = append(p.deletes, dup)
		}
		stored[id] = local{Kind: domain.RecordTransaction, Transaction: r}
	}

	seen := make(map[string]bool, len(snapshot))
	for _, r := range snapshot {
		seen[r.ExternalID] = true

		l, ok := stored[r.ExternalID]
		if !ok {
			p.creates = append(p.creates, r)
			continue
		}

		changes := compare(r, l, incomeCategory)
		if changes.Any() {
			p.updates = append(p.updates, update{rec: r, local: l, changes: changes})
		} else {
			p.unchanged++
		}
	}

	for id, l := range stored {
		if !seen[id] {
			p.deletes = append(p.deletes, l)
		}
	}
	// Map iteration order is random; keep the apply order stable.
	sort.Slice(p.deletes, func(i, j int) bool {
		a, b := p.deletes[i].ref(), p.deletes[j].ref()
		if a.Kind != b.Kind {
			return a.Kind > b.Kind
		}
		return a.ID < b.ID
	})

	return p
}

func compare(r record, l local, incomeCategory string) changeSet {
	var c changeSet
	if kindOf(r, incomeCategory) != l.Kind {
		c.Kind = true
		return c
	}

	if l.Kind == domain.RecordIncome {
		s := l.Income
		c.Name = s.Name != r.Name
		c.Amount = !s.Amount.Equal(r.Amount.Abs())
		c.Date = !r.DateDefaulted && !s.DateReceived.Equal(r.Date)
		c.Account = s.Account != ledger.IncomeAccountName(r.Method)
		return c
	}

	s := l.Transaction
	c.Name = s.Name != r.Name
	c.Amount = !s.Amount.Equal(r.Amount)
	c.Date = !r.DateDefaulted && !s.Date.Equal(r.Date)
	c.Category = s.Category != r.Category
	c.SubCategory = s.SubCategory != r.SubCategory
	c.Method = s.Method != r.Method
	return c
}
