package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage ledger accounts",
	}

	accountsCmd.AddCommand(newAccountsListCmd())
	accountsCmd.AddCommand(newAccountsCreateCmd())
	accountsCmd.AddCommand(newAccountsShowCmd())
	accountsCmd.AddCommand(newAccountsUpdateCmd())
	accountsCmd.AddCommand(newAccountsDeleteCmd())
	return accountsCmd
}

func printAccounts(w io.Writer, accounts []*domain.Account) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tBALANCE\tMETHODS")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Type, a.CurrentBalance.StringFixed(2), strings.Join(a.AssociatedMethods, ", "))
	}
	tw.Flush()
}

// ─── accounts list ──────────────────────────────────────────────────────────

func newAccountsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			accountType, _ := cmd.Flags().GetString("type")
			var accounts []*domain.Account
			if accountType != "" {
				accounts, err = a.Ledger.ListAccountsByType(cmd.Context(), domain.AccountType(accountType))
			} else {
				accounts, err = a.Ledger.ListAccounts(cmd.Context())
			}
			if err != nil {
				return err
			}

			printAccounts(cmd.OutOrStdout(), accounts)
			return nil
		},
	}
	cmd.Flags().String("type", "", "Only list accounts of this type (cash, investing, debt)")
	return cmd
}

// ─── accounts create ────────────────────────────────────────────────────────

func newAccountsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an account",
		Long: `Create an account. Debt accounts match expense records whose payment
method is exactly one of --methods.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountType, _ := cmd.Flags().GetString("type")
			balanceStr, _ := cmd.Flags().GetString("balance")
			methods, _ := cmd.Flags().GetString("methods")

			balance, err := parseAmount(balanceStr)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.Ledger.CreateAccount(cmd.Context(), ledger.NewAccount{
				Name:              args[0],
				Type:              domain.AccountType(accountType),
				InitialBalance:    balance,
				AssociatedMethods: splitMethods(methods),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created account %d: %s (%s) balance %s\n",
				account.ID, account.Name, account.Type, account.CurrentBalance.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().String("type", string(domain.AccountTypeCash), "Account type (cash, investing, debt)")
	cmd.Flags().String("balance", "0", "Initial balance")
	cmd.Flags().String("methods", "", "Comma-separated payment methods for debt accounts")
	return cmd
}

// ─── accounts show ──────────────────────────────────────────────────────────

func newAccountsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one account",
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

			account, err := a.Ledger.GetAccount(cmd.Context(), id)
			if err != nil {
				return err
			}
			printAccounts(cmd.OutOrStdout(), []*domain.Account{account})
			return nil
		},
	}
}

// ─── accounts update ────────────────────────────────────────────────────────

func newAccountsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Rename an account or replace its payment methods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var upd ledger.AccountUpdate
			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				upd.Name = &name
			}
			if cmd.Flags().Changed("methods") {
				methods, _ := cmd.Flags().GetString("methods")
				upd.AssociatedMethods = splitMethods(methods)
				if upd.AssociatedMethods == nil {
					upd.AssociatedMethods = []string{}
				}
			}
			if upd.Name == nil && upd.AssociatedMethods == nil {
				return fmt.Errorf("nothing to update: pass --name or --methods")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.Ledger.UpdateAccount(cmd.Context(), id, upd)
			if err != nil {
				return err
			}
			printAccounts(cmd.OutOrStdout(), []*domain.Account{account})
			return nil
		},
	}
	cmd.Flags().String("name", "", "New account name")
	cmd.Flags().String("methods", "", "Comma-separated payment methods (empty clears them)")
	return cmd
}

// ─── accounts delete ────────────────────────────────────────────────────────

func newAccountsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an account and its history",
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

			if err := a.Ledger.DeleteAccount(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %d\n", id)
			return nil
		},
	}
}

// ─── history ────────────────────────────────────────────────────────────────

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Show an account's balance history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Ledger.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(entries) {
				entries = entries[:limit]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tKIND\tCHANGE\tBALANCE\tDESCRIPTION")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04"), e.ChangeKind,
					signed(e.AmountChanged), e.NewBalance.StringFixed(2), e.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 0, "Show at most this many entries")
	return cmd
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
