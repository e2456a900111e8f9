// Package cli implements the finance command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/app"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "finance",
		Short: "Personal finance ledger with Notion reconciliation",
		Long: `finance keeps account balances and their change history in a local
SQLite ledger and reconciles expense and income records from a Notion
database into it.

Settings come from a TOML file (--config or FINANCE_CONFIG) and the
NOTION_API_KEY, NOTION_DATABASE_ID, FINANCE_DB_PATH and GCS_BUCKET
environment variables.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", os.Getenv("FINANCE_CONFIG"), "Path to TOML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newAccountsCmd())
	rootCmd.AddCommand(newAdjustCmd())
	rootCmd.AddCommand(newTransferCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newTransactionsCmd())
	rootCmd.AddCommand(newIncomeCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newSyncCmd())
	return rootCmd
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// openApp loads configuration and opens the application. Logs go to stderr
// so command output stays machine-readable.
func openApp(cmd *cobra.Command) (*app.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	log, err := logger.NewFromConfig(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, log)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// splitMethods turns "A, B" into ["A" "B"]. An empty string yields nil.
func splitMethods(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
