package cli

import (
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/spf13/cobra"
)

// ─── sync ───────────────────────────────────────────────────────────────────

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local records with the Notion database",
		Long: `Fetch every record from the configured Notion database and bring the
local transactions and income tables, and the balances they affect, in line
with it. The pass is all-or-nothing: a storage failure rolls it back.

With --replay, an archived snapshot from the configured bucket is reconciled
instead of the live database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			replay, _ := cmd.Flags().GetString("replay")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var engine *reconcile.Engine
			if replay != "" {
				engine, err = a.ReplayEngine(cmd.Context(), replay, dryRun)
			} else {
				engine, err = a.Engine(dryRun)
			}
			if err != nil {
				return err
			}

			stats, err := engine.Run(cmd.Context())
			printStats(cmd, stats)
			return err
		},
	}
	cmd.Flags().Bool("dry-run", false, "Compute the changes without writing them")
	cmd.Flags().String("replay", "", "Object name of an archived snapshot to reconcile")
	return cmd
}

func printStats(cmd *cobra.Command, s reconcile.Stats) {
	out := cmd.OutOrStdout()
	prefix := ""
	if s.DryRun {
		prefix = "[DRY RUN] "
	}
	fmt.Fprintf(out, "%sPass %s %s in %s\n", prefix, s.PassID, s.State, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "  total:     %d\n", s.Total)
	fmt.Fprintf(out, "  created:   %d\n", s.Created)
	fmt.Fprintf(out, "  updated:   %d\n", s.Updated)
	fmt.Fprintf(out, "  deleted:   %d\n", s.Deleted)
	fmt.Fprintf(out, "  unchanged: %d\n", s.Unchanged)
	fmt.Fprintf(out, "  errors:    %d\n", s.Errors)
	fmt.Fprintf(out, "  warnings:  %d\n", s.Warnings)
}
