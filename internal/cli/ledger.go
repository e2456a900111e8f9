package cli

import (
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/spf13/cobra"
)

// ─── adjust ─────────────────────────────────────────────────────────────────

func newAdjustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjust ID AMOUNT",
		Short: "Apply a manual balance adjustment",
		Long: `Apply a signed balance change to an account. Use --kind debt_payment to
record a payment that reduces a debt balance. Negative amounts follow "--":

  finance adjust 3 -- -25.00`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")
			description, _ := cmd.Flags().GetString("description")
			if description == "" {
				description = "Manual adjustment"
			}

			changeKind := domain.ChangeKind(kind)
			if changeKind != domain.ChangeManualAdjustment && changeKind != domain.ChangeDebtPayment {
				return fmt.Errorf("--kind must be manual_adjustment or debt_payment, got %q", kind)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			account, _, err := a.Ledger.AdjustBalance(cmd.Context(), ledger.Adjustment{
				AccountID:   id,
				Amount:      amount,
				Kind:        changeKind,
				Description: description,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %s\n", account.Name, account.CurrentBalance.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().String("kind", string(domain.ChangeManualAdjustment), "Change kind (manual_adjustment, debt_payment)")
	cmd.Flags().String("description", "", "Description recorded in the history")
	return cmd
}

// ─── transfer ───────────────────────────────────────────────────────────────

func newTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer FROM_ID TO_ID AMOUNT",
		Short: "Move money between two accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromID, err := parseID(args[0])
			if err != nil {
				return err
			}
			toID, err := parseID(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Transfers.Transfer(cmd.Context(), fromID, toID, amount, description)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Transferred %s from %s to %s\n", amount.StringFixed(2), res.From.Name, res.To.Name)
			fmt.Fprintf(out, "  %s: %s\n", res.From.Name, res.From.CurrentBalance.StringFixed(2))
			fmt.Fprintf(out, "  %s: %s\n", res.To.Name, res.To.CurrentBalance.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().String("description", "", "Description for both history entries")
	return cmd
}

// ─── verify ─────────────────────────────────────────────────────────────────

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every balance against its history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			discrepancies, err := a.Ledger.Verify(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(discrepancies) == 0 {
				fmt.Fprintln(out, "All balances match their history")
				return nil
			}
			for _, d := range discrepancies {
				fmt.Fprintf(out, "%s (%d): balance %s, history sums to %s, %d inconsistent entries\n",
					d.AccountName, d.AccountID, d.Balance.StringFixed(2), d.HistorySum.StringFixed(2), len(d.BadEntries))
			}
			return fmt.Errorf("%d accounts are inconsistent", len(discrepancies))
		},
	}
}
