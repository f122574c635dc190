// Package cli implements the socialctl maintenance commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/anonto42/nano-midea/socialsync/internal/bootstrap"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/pkg/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	JSON bool
	// Open builds the runtime the commands operate on. Tests replace it.
	Open func(ctx context.Context) (*bootstrap.Runtime, error)
}

// NewRootCommand creates the socialctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Open: openFromEnv})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "socialctl",
		Short: "Maintenance commands for the socialsync backend",
		Long: `socialctl runs maintenance against the configured record store and
event ledger. It reads the same environment as the server.`,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")

	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))
	return cmd
}

func openFromEnv(ctx context.Context) (*bootstrap.Runtime, error) {
	cfg := config.Load()
	return bootstrap.New(ctx, cfg, observability.NewLogger(cfg.Env))
}

func printResult(w io.Writer, asJSON bool, v interface{}, text string) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
