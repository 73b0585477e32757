// Command batchrun inspects and feeds batch job queues.
//
// Subcommands:
//
//	migrate   create the jobs table on SQL backends and exit
//	dispatch  push a job for a handler with JSON-encoded params
//	stats     print pending and failed queue sizes
//	list      print queued jobs without removing them
//	replay    move failed jobs back to the pending queue
//
// Configuration is read from BATCH_* environment variables; see
// internal/config. Processing itself happens in programs that register
// handlers, such as examples/scheduled.
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

	"github.com/spf13/cobra"

	"github.com/jdziat/simple-batch-jobs/internal/backend"
	"github.com/jdziat/simple-batch-jobs/internal/config"
	"github.com/jdziat/simple-batch-jobs/pkg/dispatch"
	"github.com/jdziat/simple-batch-jobs/pkg/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "batchrun",
		Short: "Inspect and feed batch job queues",
		// Errors are logged by main with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		migrateCmd(),
		dispatchCmd(),
		statsCmd(),
		listCmd(),
		replayCmd(),
	)
	return root
}

// withBackend loads configuration, opens the backend and runs fn.
func withBackend(cmd *cobra.Command, fn func(*backend.Backend, *slog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := cfg.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	b, err := backend.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close backend", "error", err)
		}
	}()

	return fn(b, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── migrate ──────────────────────────────────────────────────────────────────

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the jobs table and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(b *backend.Backend, logger *slog.Logger) error {
				logger.Info("backend ready", "queue", b.Pending.Name())
				return nil
			})
		},
	}
}

// ── dispatch ─────────────────────────────────────────────────────────────────

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch HANDLER [PARAM...]",
		Short: "Push a job; each PARAM is a JSON value, anything else is sent as a string",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(b *backend.Backend, logger *slog.Logger) error {
				job, err := dispatch.New(b.Pending, dispatch.WithLogger(logger)).
					Dispatch(cmd.Context(), args[0], parseParams(args[1:])...)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), job)
			})
		},
	}
}

// parseParams keeps valid JSON arguments verbatim and encodes the rest as
// JSON strings, so `dispatch greet alice 3` sends ["alice", 3].
func parseParams(args []string) []any {
	params := make([]any, 0, len(args))
	for _, arg := range args {
		if json.Valid([]byte(arg)) {
			params = append(params, json.RawMessage(arg))
		} else {
			params = append(params, arg)
		}
	}
	return params
}

// ── stats ────────────────────────────────────────────────────────────────────

type queueStats struct {
	Backend string `json:"backend"`
	Pending int64  `json:"pending"`
	Failed  *int64 `json:"failed,omitempty"`
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print pending and failed queue sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(b *backend.Backend, _ *slog.Logger) error {
				ctx := cmd.Context()
				stats := queueStats{Backend: b.Kind}

				var err error
				if stats.Pending, err = b.Pending.Count(ctx); err != nil {
					return err
				}
				if b.Failed != nil {
					n, err := b.Failed.Count(ctx)
					if err != nil {
						return err
					}
					stats.Failed = &n
				}
				return writeJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

// ── list ─────────────────────────────────────────────────────────────────────

func listCmd() *cobra.Command {
	var (
		failed bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print queued jobs without removing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(b *backend.Backend, _ *slog.Logger) error {
				q := b.Pending
				if failed {
					if b.Failed == nil {
						return backend.ErrFailedQueueDisabled
					}
					q = b.Failed
				}
				jobs, err := q.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "list the failed queue instead of the pending queue")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum jobs to print, 0 for all")
	return cmd
}

// ── replay ───────────────────────────────────────────────────────────────────

func replayCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Move failed jobs back to the pending queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(b *backend.Backend, logger *slog.Logger) error {
				if b.Failed == nil {
					return backend.ErrFailedQueueDisabled
				}
				moved, err := queue.Replay(cmd.Context(), b.Failed, b.Pending, limit)
				logger.Info("replayed failed jobs", "moved", moved)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int{"replayed": moved})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum jobs to replay")
	return cmd
}
