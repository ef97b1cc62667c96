// Command gdprctl runs the operator tasks of gdprkit: migrations, retention
// cleanup, erasure, export, key rotation and the compliance report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const closeTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openLive).ExecuteContext(ctx); err != nil {
		slog.Error("Command failed.", "reason", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "gdprctl",
		Short:         "Operate a gdprkit deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(open),
		newCleanupCmd(open),
		newEraseCmd(open),
		newExportCmd(open),
		newRekeyCmd(open),
		newReportCmd(open),
		newDataKeyCmd(open),
	)
	return root
}

// withBackend opens a backend, runs fn and closes the backend.
func withBackend(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b Backend) error) (err error) {
	ctx := cmd.Context()
	b, err := open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := b.Close(closeCtx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, b)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
