package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"apartur/internal/bootstrap"
	syncservice "apartur/internal/datasync/service"
	"apartur/pkg/config"

	"github.com/spf13/cobra"
)

const ServiceName = "apartments-sync"

var errSyncFailed = errors.New("sync failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var force bool

	root := &cobra.Command{
		Use:   "sync",
		Short: "Import the regional tourist apartment registry",
		Long: `Runs one open-data import under the shared sync lock.

Without --force the import only runs once per local calendar day, at or
after the configured cutoff (SYNC_CUTOFF, SYNC_TIMEZONE). Exits 0 when the
import succeeded or was skipped and 1 when it failed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, manager syncservice.SyncManager) error {
				result := manager.ExecuteSync(ctx, force)
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if !result.Success && !result.Skipped {
					return fmt.Errorf("%w: %s", errSyncFailed, result.Error)
				}
				return nil
			})
		},
	}
	root.Flags().BoolVar(&force, "force", false, "ignore the daily window; a running sync still wins")

	root.AddCommand(newStatusCmd(), newHistoryCmd())
	return root
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print last sync, next window and lock state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, manager syncservice.SyncManager) error {
				status, err := manager.GetStatus(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), status)
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent sync runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, manager syncservice.SyncManager) error {
				entries, err := manager.History(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}

func withManager(ctx context.Context, fn func(context.Context, syncservice.SyncManager) error) error {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := bootstrap.KafkaConfig(cfg)
	if err != nil {
		return err
	}
	events, err := bootstrap.Publisher(cfg, kafkaCfg, cfg.SyncEventsTopic, ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			cfg.Log.Error("Failed to close publisher", "error", err)
		}
	}()

	_, apartments := bootstrap.Apartments(cfg)
	manager, err := bootstrap.SyncManager(cfg, apartments, events)
	if err != nil {
		return err
	}
	return fn(ctx, manager)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
