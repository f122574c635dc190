package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// purger is implemented by ledgers whose entries do not expire by themselves.
type purger interface {
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the event dedupe ledger",
	}
	cmd.AddCommand(newLedgerPurgeCommand(opts))
	return cmd
}

func newLedgerPurgeCommand(opts *RootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:          "purge",
		Short:        "Delete claims older than --older-than",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			ctx := cmd.Context()
			rt, err := opts.Open(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			p, ok := rt.Ledger.(purger)
			if !ok {
				return errors.New("the configured ledger expires claims by itself; nothing to purge")
			}
			n, err := p.Purge(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("purge ledger: %w", err)
			}
			return printResult(cmd.OutOrStdout(), opts.JSON, map[string]int64{"purged": n},
				fmt.Sprintf("purged %d claims", n))
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the claims to delete")
	return cmd
}
