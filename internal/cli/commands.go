package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Long: `Apply every embedded migration in order. Migrations are idempotent,
so running the command twice is safe. --file applies one SQL file from disk instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, backend Backend) error {
				applied, err := backend.Migrate(ctx, file)
				if err != nil {
					return err
				}
				return newPrinter(opts, cmd).migrations(applied)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "apply a single SQL file")

	return cmd
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Provision deliverables for signed deals that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, backend Backend) error {
				provisioned, err := backend.Reconcile(ctx)
				if perr := newPrinter(opts, cmd).reconciled(provisioned); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

// NewSeedPackagesCommand creates the seed-packages command.
func NewSeedPackagesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-packages <file.yaml>",
		Short: "Insert or update sponsorship packages from a YAML file",
		Long: `Insert or update sponsorship packages from a YAML file of the form:

  packages:
    - name: Gold
      price: 25000
      slots: 2
      deliverables:
        - {title: Runway logo, type: logo, due_days: 10}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			return opts.withBackend(cmd, func(ctx context.Context, backend Backend) error {
				summary, err := backend.SeedPackages(ctx, f)
				if err != nil {
					return err
				}
				return newPrinter(opts, cmd).seeded(summary)
			})
		},
	}
}

// NewBoardCommand creates the board command.
func NewBoardCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print the pipeline board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, backend Backend) error {
				board, err := backend.Board(ctx)
				if err != nil {
					return err
				}
				return newPrinter(opts, cmd).board(board)
			})
		},
	}
}

// NewRelayCommand creates the relay command.
func NewRelayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Forward database change notifications to Redis",
		Long: `Hold one LISTEN connection and republish every change on the
realtime:<table> Redis channels, so API instances running with
REALTIME_BACKEND=redis share it. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backend, err := opts.open(ctx)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer backend.Close()

			fmt.Fprintln(cmd.ErrOrStderr(), "relaying changes, press Ctrl+C to stop")
			if err := backend.Relay(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
