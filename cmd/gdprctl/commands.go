package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newMigrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				ran, err := b.Migrate(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(ran) == 0 {
					fmt.Fprintln(out, "Database is up to date.")
					return nil
				}
				for _, v := range ran {
					fmt.Fprintln(out, "applied", v)
				}
				return nil
			})
		},
	}
}

func newCleanupCmd(open Opener) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Apply the retention policies once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				report, err := b.Cleanup(ctx, dryRun)
				if report != nil {
					if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count the records each policy would touch without changing them")
	return cmd
}

// cliActor is recorded as the actor of an erasure run from the command
// line when no operator id is given.
const cliActor = "gdprctl"

var errNoActor = errors.New("gdprctl: --actor must not be empty")

func newEraseCmd(open Opener) *cobra.Command {
	var reason, actor string

	cmd := &cobra.Command{
		Use:   "erase <user-id>",
		Short: "Erase an account and its personal data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(actor) == "" {
				return errNoActor
			}

			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				res, err := b.Erase(ctx, args[0], reason, actor)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"erased %s: %d consent records deleted, %d requests pseudonymized, %d audit entries scrubbed\n",
					res.UserID, res.ConsentRecords, res.Requests, res.AuditEntries)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "operator request", "why the account is erased, kept in the audit log")
	cmd.Flags().StringVar(&actor, "actor", cliActor, "id of the operator requesting the erasure")
	return cmd
}

func newExportCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "export <user-id>",
		Short: "Print the personal data export of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				bundle, err := b.Export(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), bundle)
			})
		},
	}
}

func newRekeyCmd(open Opener) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "rekey",
		Short: "Re-encrypt personal data sealed with an old key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if batch <= 0 {
				return errors.New("--batch must be positive")
			}

			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				n, err := b.Rekey(ctx, batch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "re-encrypted %d rows\n", n)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 500, "rows per transaction")
	return cmd
}

// errChecklistFailed is returned by report when an item fails.
var errChecklistFailed = errors.New("compliance checklist has failing items")

func newReportCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the compliance report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				report, err := b.Report(ctx)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if !report.Passed() {
					return errChecklistFailed
				}
				return nil
			})
		},
	}
}

func newDataKeyCmd(open Opener) *cobra.Command {
	var masterKey string

	cmd := &cobra.Command{
		Use:   "datakey",
		Short: "Generate a KMS wrapped data key for encryption.kms.data_keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				blob, err := b.DataKey(ctx, masterKey)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), blob)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&masterKey, "master-key", "", "KMS key that wraps the data key, defaults to encryption.kms.master_key_id")
	return cmd
}
