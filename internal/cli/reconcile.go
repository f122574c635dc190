package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anonto42/nano-midea/socialsync/internal/counters"
)

// NewReconcileCommand creates the reconcile command, which recomputes
// denormalized counters from the relationship records.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "reconcile [posts|users|all]",
		Short:     "Recompute like, comment and follow counters",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"posts", "users", "all"},
		Example: `  socialctl reconcile posts
  socialctl reconcile all --json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.Open(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			var total counters.Report
			if args[0] == "posts" || args[0] == "all" {
				r, err := rt.Reconciler.Posts(ctx)
				if err != nil {
					return fmt.Errorf("reconcile posts: %w", err)
				}
				total = total.Add(r)
			}
			if args[0] == "users" || args[0] == "all" {
				r, err := rt.Reconciler.Users(ctx)
				if err != nil {
					return fmt.Errorf("reconcile users: %w", err)
				}
				total = total.Add(r)
			}
			return printResult(cmd.OutOrStdout(), opts.JSON, total,
				fmt.Sprintf("checked %d documents, repaired %d", total.Checked, total.Repaired))
		},
	}
	return cmd
}
