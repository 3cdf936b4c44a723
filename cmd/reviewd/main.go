// Reviewd is the discovery review daemon: a durable task queue and document
// classification pipeline for litigation discovery.
//
// The daemon exposes an HTTP API for task submission, document ingestion,
// and progress tracking, and runs review tasks on a bounded worker pool.
// Classifier verdicts come from a model gateway when one is configured and
// from deterministic rules otherwise.
//
// Usage:
//
//	# Start the daemon with defaults
//	reviewd serve
//
//	# Configure via file or environment
//	reviewd serve --config ~/.config/reviewd/config.yaml
//	SERVER_PORT=9090 GATEWAY_BASE_URL=http://localhost:11434/v1 reviewd serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/agent"
	"github.com/fyrsmithlabs/reviewd/internal/classify"
	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/events"
	"github.com/fyrsmithlabs/reviewd/internal/gateway"
	reviewdhttp "github.com/fyrsmithlabs/reviewd/internal/http"
	"github.com/fyrsmithlabs/reviewd/internal/logging"
	"github.com/fyrsmithlabs/reviewd/internal/model"
	"github.com/fyrsmithlabs/reviewd/internal/review"
	"github.com/fyrsmithlabs/reviewd/internal/store"
	"github.com/fyrsmithlabs/reviewd/internal/task"
	"github.com/fyrsmithlabs/reviewd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewd",
		Short:         "Discovery review daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newReviewCmd(), newVersionCmd())
	return root
}

func newReviewCmd() *cobra.Command {
	var (
		configPath string
		matterID   string
		query      string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run a one-shot discovery review and print the report",
		Long: "Review runs the discovery pipeline directly against the configured\n" +
			"store, without the daemon or task queue, and prints the result.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if matterID == "" {
				return fmt.Errorf("--matter is required")
			}
			if query == "" {
				return fmt.Errorf("--query is required")
			}

			cfg, err := config.LoadWithFile(configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			logger, err := logging.New(&cfg.Logging)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer func() { _ = logging.Sync(logger) }()

			db, err := store.Open(cfg.Store)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer db.Close()

			var chat gateway.ChatModel
			if cfg.Gateway.BaseURL != "" {
				client, err := gateway.NewClient(cfg.Gateway, logger.Named("gateway"))
				if err != nil {
					return fmt.Errorf("creating model gateway: %w", err)
				}
				chat = client
			}

			pipeline := review.NewPipelineAgent(db, chat, classify.DefaultConfig(), logger.Named("review"))
			result := pipeline.Execute(cmd.Context(), model.TaskInput{
				Query:    query,
				MatterID: matterID,
			}, nil)
			if !result.Success {
				return fmt.Errorf("review failed: %s", result.Error)
			}

			if jsonOut {
				fmt.Fprintln(cmd.OutOrStdout(), string(result.Output))
				return nil
			}
			var out review.Output
			if err := json.Unmarshal(result.Output, &out); err != nil {
				return fmt.Errorf("decoding review output: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), out.Report)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/reviewd/config.yaml)")
	cmd.Flags().StringVar(&matterID, "matter", "", "matter whose corpus to review")
	cmd.Flags().StringVar(&query, "query", "", "review instruction")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full structured output instead of the report")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reviewd by Fyrsmith Labs\n")
			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", gitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", buildDate)
		},
	}
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reviewd daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/reviewd/config.yaml)")
	return cmd
}

// run starts the daemon and blocks until the context is cancelled.
//
// Initialization order:
//  1. Configuration, logger, telemetry
//  2. SQLite store
//  3. Model gateway and NATS publisher (both optional)
//  4. Agent registry with the discovery review pipeline
//  5. Task manager and polling runner
//  6. HTTP server
func run(ctx context.Context, configPath string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	logger.Info("starting reviewd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("gateway_configured", cfg.Gateway.BaseURL != ""),
		zap.Bool("events_configured", cfg.Events.URL != ""),
	)

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0700); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	db, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	// The model gateway is optional: without it every classifier verdict
	// takes the rule-based path.
	var chat gateway.ChatModel
	if cfg.Gateway.BaseURL != "" {
		client, err := gateway.NewClient(cfg.Gateway, logger.Named("gateway"))
		if err != nil {
			return fmt.Errorf("creating model gateway: %w", err)
		}
		chat = client
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.URL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.Events)
		if err != nil {
			return fmt.Errorf("connecting event publisher: %w", err)
		}
		publisher = natsPub
	}
	defer publisher.Close()

	registry := agent.NewRegistry()
	pipeline := review.NewPipelineAgent(db, chat, classify.DefaultConfig(), logger.Named("review"))
	if err := registry.Register(pipeline); err != nil {
		return fmt.Errorf("registering review agent: %w", err)
	}

	manager, err := task.NewManager(db, db, registry, publisher, logger.Named("task"))
	if err != nil {
		return fmt.Errorf("creating task manager: %w", err)
	}
	runner := task.NewRunner(cfg.Runner, manager, db, logger.Named("runner"))

	srv, err := reviewdhttp.NewServer(manager, db, logger.Named("http"), &cfg.Server)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := runner.Start(ctx); err != nil {
			errCh <- fmt.Errorf("runner: %w", err)
		}
	}()
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Shutdown.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
