package reconcile

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

type applyResult struct {
	created, updated, deleted, errors int
}

// apply writes p through u. Deletes go first so a record that moved tables
// never collides with itself. Each record runs in its own savepoint: a record
// error undoes that record only, anything else aborts the pass.
func (e *Engine) apply(ctx context.Context, u *ledger.Unit, p plan) (applyResult, error) {
	log := logger.FromContext(ctx)
	resolver := ledger.NewResolver(u)
	var res applyResult

	step := func(externalID string, fn func() error) (bool, error) {
		err := u.Savepoint(ctx, fn)
		if err == nil {
			return true, nil
		}
		if isRecordError(err) {
			res.errors++
			log.Warn().Err(err).Str("external_id", externalID).Msg("Skipping record")
			return false, nil
		}
		return false, err
	}

	for _, l := range p.deletes {
		ok, err := step(externalIDOf(l), func() error { return e.deleteRecord(ctx, u, l) })
		if err != nil {
			return res, err
		}
		if ok {
			res.deleted++
			log.Info().Str("kind", string(l.Kind)).Str("name", l.name()).Msg("Deleted record")
		}
	}

	for _, r := range p.creates {
		ok, err := step(r.ExternalID, func() error { return e.createRecord(ctx, u, resolver, r) })
		if err != nil {
			return res, err
		}
		if ok {
			res.created++
			log.Info().Str("external_id", r.ExternalID).Str("name", r.Name).Msg("Created record")
		}
	}

	for _, up := range p.updates {
		ok, err := step(up.rec.ExternalID, func() error { return e.updateRecord(ctx, u, resolver, up) })
		if err != nil {
			return res, err
		}
		if ok {
			res.updated++
			log.Info().
				Str("external_id", up.rec.ExternalID).
				Strs("fields", up.changes.Fields()).
				Msg("Updated record")
		}
	}

	return res, nil
}

func externalIDOf(l local) string {
	if l.Kind == domain.RecordIncome {
		return l.Income.ExternalID
	}
	return l.Transaction.ExternalID
}

func (e *Engine) deleteRecord(ctx context.Context, u *ledger.Unit, l local) error {
	ref := l.ref()
	if err := u.ReleaseRecord(ctx, ref); err != nil {
		return err
	}
	if ref.Kind == domain.RecordIncome {
		return u.Records().DeleteIncome(ctx, ref.ID)
	}
	return u.Records().DeleteTransaction(ctx, ref.ID)
}

func (e *Engine) createRecord(ctx context.Context, u *ledger.Unit, resolver *ledger.Resolver, r record) error {
	now := e.now()

	if kindOf(r, e.cfg.IncomeCategory) == domain.RecordIncome {
		account, err := resolver.ResolveForIncome(ctx, r.Method)
		if err != nil {
			return err
		}
		inc := &domain.IncomeRecord{
			ExternalID:   r.ExternalID,
			Name:         r.Name,
			Amount:       r.Amount.Abs(),
			DateReceived: r.Date,
			Account:      account.Name,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := u.Records().InsertIncome(ctx, inc); err != nil {
			return err
		}
		return settleIncome(ctx, u, inc, account)
	}

	tx := &domain.TransactionRecord{
		ExternalID:  r.ExternalID,
		Name:        r.Name,
		Amount:      r.Amount,
		Date:        r.Date,
		Category:    r.Category,
		SubCategory: r.SubCategory,
		Method:      r.Method,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.Records().InsertTransaction(ctx, tx); err != nil {
		return err
	}
	return settleTransaction(ctx, u, resolver, tx)
}

func (e *Engine) updateRecord(ctx context.Context, u *ledger.Unit, resolver *ledger.Resolver, up update) error {
	if up.changes.Kind {
		if err := e.deleteRecord(ctx, u, up.local); err != nil {
			return err
		}
		return e.createRecord(ctx, u, resolver, up.rec)
	}

	now := e.now()
	r := up.rec

	if up.local.Kind == domain.RecordIncome {
		inc := *up.local.Income
		inc.Name = r.Name
		inc.Amount = r.Amount.Abs()
		if up.changes.Date {
			inc.DateReceived = r.Date
		}
		inc.UpdatedAt = now

		var account *domain.Account
		if up.changes.Amount || up.changes.Account {
			var err error
			if account, err = resolver.ResolveForIncome(ctx, r.Method); err != nil {
				return err
			}
			inc.Account = account.Name
		}
		if err := u.Records().UpdateIncome(ctx, &inc); err != nil {
			return err
		}
		if account != nil {
			return settleIncome(ctx, u, &inc, account)
		}
		return nil
	}

	tx := *up.local.Transaction
	tx.Name = r.Name
	tx.Amount = r.Amount
	if up.changes.Date {
		tx.Date = r.Date
	}
	tx.Category = r.Category
	tx.SubCategory = r.SubCategory
	tx.Method = r.Method
	tx.UpdatedAt = now

	if err := u.Records().UpdateTransaction(ctx, &tx); err != nil {
		return err
	}
	if up.changes.Amount || up.changes.Method {
		return settleTransaction(ctx, u, resolver, &tx)
	}
	return nil
}

// settleTransaction makes the ledger reflect tx paid with its method. An
// unresolved method leaves the transaction with no balance effect.
func settleTransaction(ctx context.Context, u *ledger.Unit, resolver *ledger.Resolver, tx *domain.TransactionRecord) error {
	res, err := resolver.ResolveForTransaction(ctx, tx.Method, tx.Amount)
	if err != nil {
		return err
	}
	ref := domain.RecordRef{Kind: domain.RecordTransaction, ID: tx.ID}
	if !res.Resolved {
		return u.SettleRecord(ctx, ref, nil, decimal.Zero, domain.ChangeTransaction, "Transaction: "+tx.Name)
	}
	return u.SettleRecord(ctx, ref, res.Account, res.Delta, domain.ChangeTransaction, "Transaction: "+tx.Name)
}

func settleIncome(ctx context.Context, u *ledger.Unit, inc *domain.IncomeRecord, account *domain.Account) error {
	ref := domain.RecordRef{Kind: domain.RecordIncome, ID: inc.ID}
	return u.SettleRecord(ctx, ref, account, inc.Amount, domain.ChangeIncome, "Income: "+inc.Name)
}
