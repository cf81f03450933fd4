// Package cli implements pipelinectl, the operations tool for the sponsorship pipeline.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fashionos/sponsor-crm/internal/service"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON}

// Backend is what the commands need from the database and the pipeline.
type Backend interface {
	Migrate(ctx context.Context, file string) ([]string, error)
	Reconcile(ctx context.Context) (int, error)
	SeedPackages(ctx context.Context, r io.Reader) (service.SeedSummary, error)
	Board(ctx context.Context) (kanban.Board, error)
	Relay(ctx context.Context) error
	Close()
}

// Opener connects a Backend.
type Opener func(ctx context.Context) (Backend, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string
	Timeout time.Duration

	open Opener
}

// NewRootCommand creates the pipelinectl root command.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "pipelinectl",
		Short: "Operate the FashionOS sponsorship pipeline",
		Long:  "Schema migrations, deliverable reconciliation, package seeding and board inspection for the sponsorship pipeline.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "time limit for one-shot commands")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewSeedPackagesCommand(opts))
	cmd.AddCommand(NewBoardCommand(opts))
	cmd.AddCommand(NewRelayCommand(opts))

	return cmd
}

// withBackend opens the backend under the command timeout and runs fn.
func (o *RootOptions) withBackend(cmd *cobra.Command, fn func(ctx context.Context, backend Backend) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.Timeout)
	defer cancel()

	backend, err := o.open(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer backend.Close()

	return fn(ctx, backend)
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
