package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/metrics"
	"github.com/shopspring/decimal"
)

// TransferResult is the outcome of a completed transfer.
type TransferResult struct {
	From   *domain.Account      `json:"from_account"`
	To     *domain.Account      `json:"to_account"`
	Debit  *domain.HistoryEntry `json:"debit"`
	Credit *domain.HistoryEntry `json:"credit"`
}

// TransferCoordinator moves money between two accounts atomically.
type TransferCoordinator struct {
	ledger *Ledger
}

func NewTransferCoordinator(l *Ledger) *TransferCoordinator {
	return &TransferCoordinator{ledger: l}
}

// Transfer debits fromID and credits toID by amount in a single unit of work.
// An empty description yields "Transfer to <name>" / "Transfer from <name>".
func (c *TransferCoordinator) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, description string) (*TransferResult, error) {
	res, err := c.transfer(ctx, fromID, toID, amount, description)
	if err != nil {
		metrics.Transfers.WithLabelValues(transferOutcome(err)).Inc()
		c.ledger.log.Warn().
			Err(err).
			Int64("from_account_id", fromID).
			Int64("to_account_id", toID).
			Str("amount", amount.String()).
			Msg("Transfer rejected")
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	metrics.Transfers.WithLabelValues("ok").Inc()
	c.ledger.log.Info().
		Int64("from_account_id", fromID).
		Int64("to_account_id", toID).
		Str("amount", amount.String()).
		Msg("Transfer completed")
	return res, nil
}

func (c *TransferCoordinator) transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, description string) (*TransferResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: transfer amount must be positive, got %s", domain.ErrInvalidAmount, amount)
	}
	if fromID == toID {
		return nil, domain.ErrSameAccount
	}

	res := &TransferResult{}
	err := c.ledger.Update(ctx, []int64{fromID, toID}, func(u *Unit) error {
		from, err := u.Account(ctx, fromID)
		if err != nil {
			return err
		}
		to, err := u.Account(ctx, toID)
		if err != nil {
			return err
		}
		if from.CurrentBalance.LessThan(amount) {
			return fmt.Errorf("%w: %s has %s, needs %s", domain.ErrInsufficientFunds, from.Name, from.CurrentBalance, amount)
		}

		debitDesc, creditDesc := description, description
		if description == "" {
			debitDesc = "Transfer to " + to.Name
			creditDesc = "Transfer from " + from.Name
		}

		res.From, res.Debit, err = u.AdjustBalance(ctx, Adjustment{
			AccountID:   fromID,
			Amount:      amount.Neg(),
			Kind:        domain.ChangeTransfer,
			Description: debitDesc,
		})
		if err != nil {
			return err
		}
		res.To, res.Credit, err = u.AdjustBalance(ctx, Adjustment{
			AccountID:   toID,
			Amount:      amount,
			Kind:        domain.ChangeTransfer,
			Description: creditDesc,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func transferOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrSameAccount):
		return "invalid"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "not_found"
	}
	return "error"
}
