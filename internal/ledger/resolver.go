package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Well-known accounts that payment methods and income labels map to.
const (
	CheckingAccountName = "Checking Account"
	VenmoAccountName    = "Venmo"
	AppleHYSAName       = "Apple HYSA"
)

// AccountSource is what the resolver needs from the ledger. Both *Ledger and
// *Unit satisfy it.
type AccountSource interface {
	GetOrCreateAccount(ctx context.Context, name string, t domain.AccountType) (*domain.Account, bool, error)
	ListAccountsByType(ctx context.Context, t domain.AccountType) ([]*domain.Account, error)
}

// Resolver maps payment methods and income labels to accounts.
type Resolver struct {
	src AccountSource
}

func NewResolver(src AccountSource) *Resolver {
	return &Resolver{src: src}
}

// Resolution is the account a transaction affects and by how much.
type Resolution struct {
	Account  *domain.Account
	Delta    decimal.Decimal
	Resolved bool
}

// ResolveForTransaction finds the account a purchase paid with method
// affects. Debit and Venmo payments reduce a cash balance, anything charged
// to a debt account's alias increases what is owed. An unknown method
// resolves to nothing and creates no account.
func (r *Resolver) ResolveForTransaction(ctx context.Context, method string, amount decimal.Decimal) (Resolution, error) {
	switch strings.ToLower(method) {
	case "debit":
		return r.resolveNamed(ctx, CheckingAccountName, domain.AccountTypeCash, amount)
	case "venmo":
		return r.resolveNamed(ctx, VenmoAccountName, domain.AccountTypeCash, amount)
	}

	debts, err := r.src.ListAccountsByType(ctx, domain.AccountTypeDebt)
	if err != nil {
		return Resolution{}, fmt.Errorf("ResolveForTransaction: listing debt accounts: %w", err)
	}
	for _, a := range debts {
		if a.HasMethod(method) {
			return Resolution{Account: a, Delta: transactionDelta(a.Type, amount), Resolved: true}, nil
		}
	}
	return Resolution{}, nil
}

func (r *Resolver) resolveNamed(ctx context.Context, name string, t domain.AccountType, amount decimal.Decimal) (Resolution, error) {
	a, _, err := r.src.GetOrCreateAccount(ctx, name, t)
	if err != nil {
		return Resolution{}, fmt.Errorf("ResolveForTransaction: %w", err)
	}
	return Resolution{Account: a, Delta: transactionDelta(a.Type, amount), Resolved: true}, nil
}

func transactionDelta(t domain.AccountType, amount decimal.Decimal) decimal.Decimal {
	if t == domain.AccountTypeDebt {
		return amount
	}
	return amount.Neg()
}

// IncomeAccountName returns the name of the account income labelled label is
// credited to.
func IncomeAccountName(label string) string {
	if strings.EqualFold(label, "apple hysa") {
		return AppleHYSAName
	}
	return CheckingAccountName
}

// ResolveForIncome returns the account income labelled label is credited to,
// creating it if needed.
func (r *Resolver) ResolveForIncome(ctx context.Context, label string) (*domain.Account, error) {
	name := IncomeAccountName(label)
	t := domain.AccountTypeCash
	if name == AppleHYSAName {
		t = domain.AccountTypeInvesting
	}
	a, _, err := r.src.GetOrCreateAccount(ctx, name, t)
	if err != nil {
		return nil, fmt.Errorf("ResolveForIncome: %w", err)
	}
	return a, nil
}
