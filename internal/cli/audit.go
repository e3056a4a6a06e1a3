package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Since int64
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay the ledger and compare it with live state",
		Long: `Replay the ledger and compare every account with live state.

A clean run stores a checkpoint; pass its seq as --since to replay only
newer entries. Any drift halts writes to the drifted aggregates until
"potionshop halts clear".

Exit codes:
  0 - Ledger and live state agree
  3 - Drift found; affected aggregates are halted
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
				report, err := s.engine.Reconcile(ctx, opts.Since)
				if err != nil {
					return s.out.Fail("reconcile", err)
				}
				return s.out.Success(report, func(w io.Writer) {
					fmt.Fprintf(w, "Replayed %d entries (seq %d..%d): clean\n", report.Entries, report.Since+1, report.Through)
					fmt.Fprintf(w, "Checkpoint: --since %d\n", report.Through)
				})
			})
		},
	}

	cmd.Flags().Int64Var(&opts.Since, "since", 0, "replay entries after this checkpoint seq")

	return cmd
}

// LedgerOptions holds flags for the ledger command.
type LedgerOptions struct {
	*RootOptions
	After int64
	Limit int
	TxnID string
}

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print ledger entries",
		Long: `Print ledger entries in seq order.

Examples:
  potionshop ledger
  potionshop ledger --after 40 --limit 10
  potionshop ledger --txn 0190f3c2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
				var entries []shop.LedgerEntry
				var err error
				if opts.TxnID != "" {
					entries, err = s.engine.Transaction(ctx, opts.TxnID)
				} else {
					entries, err = s.engine.Ledger(ctx, opts.After, opts.Limit)
				}
				if err != nil {
					return s.out.Fail("ledger", err)
				}
				return s.out.Success(entries, func(w io.Writer) {
					for _, e := range entries {
						kind := string(e.ChangeType)
						if e.SubType != shop.SubNone {
							kind += "/" + string(e.SubType)
						}
						fmt.Fprintf(w, "%6d  %-36s %-34s %-18s %+8d  %s\n",
							e.Seq, e.TxnID, kind, e.Account(), e.Amount, e.Description)
					}
				})
			})
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only entries after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")
	cmd.Flags().StringVar(&opts.TxnID, "txn", "", "only entries of this transaction")

	return cmd
}

// NewHaltsCommand creates the halts command group.
func NewHaltsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "halts",
		Short: "Inspect and clear write halts",
		Long: `Reconcile halts writes to every aggregate whose replayed balance differs
from live state. Repair the data, then clear the halt.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List halted aggregates",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				halts, err := s.engine.Halts(ctx)
				if err != nil {
					return s.out.Fail("halts list", err)
				}
				if halts == nil {
					halts = []store.Halt{}
				}
				return s.out.Success(halts, func(w io.Writer) {
					if len(halts) == 0 {
						fmt.Fprintln(w, "No halts.")
						return
					}
					for _, h := range halts {
						fmt.Fprintf(w, "%-16s %s (since %s)\n", h.Aggregate, h.Reason, h.CreatedAt.Format("2006-01-02 15:04:05"))
					}
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear <aggregate>",
		Short:         "Resume writes to an aggregate",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.engine.ClearHalt(ctx, args[0]); err != nil {
					return s.out.Fail("halts clear", err)
				}
				return s.out.Success(map[string]string{"cleared": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Cleared halt on %s\n", args[0])
				})
			})
		},
	})
	return cmd
}

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Return balances to genesis",
		Long: `Return gold, liquids, capacity and potion stock to the genesis
inventory by writing compensating ADMIN_RESET entries. Ledger history,
recipes, customers and carts are kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes {
				return NewExitError(ExitCommandError, "reset needs --yes")
			}
			return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
				j, err := s.engine.Reset(ctx)
				if err != nil {
					return s.out.Fail("reset", err)
				}
				return s.out.Success(j, func(w io.Writer) {
					if j.TxnID == "" {
						fmt.Fprintln(w, "Already at genesis.")
						return
					}
					fmt.Fprintf(w, "Reset to genesis with %d compensating entries, txn %s\n", len(j.Entries), j.TxnID)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the reset")

	return cmd
}
