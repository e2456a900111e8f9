package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/spf13/cobra"
)

func newTransactionsCmd() *cobra.Command {
	transactionsCmd := &cobra.Command{
		Use:   "transactions",
		Short: "Inspect reconciled expense records",
	}
	transactionsCmd.AddCommand(newTransactionsListCmd())
	transactionsCmd.AddCommand(newTransactionsShowCmd())
	return transactionsCmd
}

func newIncomeCmd() *cobra.Command {
	incomeCmd := &cobra.Command{
		Use:   "income",
		Short: "Inspect reconciled income records",
	}
	incomeCmd.AddCommand(newIncomeListCmd())
	incomeCmd.AddCommand(newIncomeShowCmd())
	return incomeCmd
}

// ─── transactions list ──────────────────────────────────────────────────────

func newTransactionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			start, end, err := domain.ParseDateRange(startStr, endStr)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txs, err := a.DB.ListTransactions(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tNAME\tAMOUNT\tCATEGORY\tMETHOD")
			for _, r := range txs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Date.Format("2006-01-02"), r.Name, r.Amount.StringFixed(2), r.Category, r.Method)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("start", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Last date to include (YYYY-MM-DD)")
	return cmd
}

// ─── transactions show ──────────────────────────────────────────────────────

func newTransactionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.DB.GetTransaction(cmd.Context(), id)
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("transaction %d: %w", id, domain.ErrRecordNotFound)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Transaction %d: %s\n", r.ID, r.Name)
			fmt.Fprintf(out, "  Amount:       %s\n", r.Amount.StringFixed(2))
			fmt.Fprintf(out, "  Date:         %s\n", r.Date.Format("2006-01-02"))
			fmt.Fprintf(out, "  Category:     %s / %s\n", r.Category, r.SubCategory)
			fmt.Fprintf(out, "  Method:       %s\n", r.Method)
			if r.ExternalID != "" {
				fmt.Fprintf(out, "  External ID:  %s\n", r.ExternalID)
			}
			return nil
		},
	}
}

// ─── income list ────────────────────────────────────────────────────────────

func newIncomeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List income, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			account, _ := cmd.Flags().GetString("account")
			income, err := a.DB.ListIncome(cmd.Context(), account)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tNAME\tAMOUNT\tACCOUNT")
			for _, r := range income {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
					r.ID, r.DateReceived.Format("2006-01-02"), r.Name, r.Amount.StringFixed(2), r.Account)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("account", "", "Only list income attributed to this account name")
	return cmd
}

// ─── income show ────────────────────────────────────────────────────────────

func newIncomeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one income record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.DB.GetIncome(cmd.Context(), id)
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("income %d: %w", id, domain.ErrRecordNotFound)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Income %d: %s\n", r.ID, r.Name)
			fmt.Fprintf(out, "  Amount:       %s\n", r.Amount.StringFixed(2))
			fmt.Fprintf(out, "  Received:     %s\n", r.DateReceived.Format("2006-01-02"))
			fmt.Fprintf(out, "  Account:      %s\n", r.Account)
			if r.ExternalID != "" {
				fmt.Fprintf(out, "  External ID:  %s\n", r.ExternalID)
			}
			return nil
		},
	}
}
