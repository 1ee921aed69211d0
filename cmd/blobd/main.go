package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dray-io/blobstore/internal/config"
	"github.com/dray-io/blobstore/internal/gc"
	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/task"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "blobd",
		Short: "blobd - deduplicating blob storage for mail",
		Long: `blobd stores mail blobs in an object store, deduplicates them by content,
caches small blobs, and garbage collects blobs no longer referenced.

Configuration is read from --config, $BLOBD_CONFIG or ./blobd.yaml. Every key
can be overridden with BLOBD_<SECTION>_<KEY>, e.g. BLOBD_GC_ENABLED=true.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newGCCmd(&configPath))
	root.AddCommand(newVersionCmd())
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("blobd version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the blob store with its cache and periodic garbage collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if metricsAddr != "" {
				cfg.Observability.MetricsAddr = metricsAddr
			}
			logger := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
			return serve(cfg, logger)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Override metrics endpoint address (e.g., :9090)")
	return cmd
}

func serve(cfg *config.Config, logger *logging.Logger) error {
	daemon, err := NewDaemon(DaemonOptions{
		Config:    cfg,
		Logger:    logger,
		Version:   version,
		GitCommit: gitCommit,
		BuildTime: buildTime,
	})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := daemon.Start(context.Background()); err != nil {
		return err
	}

	sig := <-sigCh
	logger.Infof("received shutdown signal", map[string]any{"signal": sig.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return daemon.Shutdown(shutdownCtx)
}

// gcReport is printed by the gc command.
type gcReport struct {
	Result   task.Result `json:"result"`
	Snapshot gc.Snapshot `json:"snapshot"`
}

// errPartialRun makes the gc command exit non-zero after printing its report.
var errPartialRun = errors.New("gc run was partial")

func newGCCmd(configPath *string) *cobra.Command {
	var (
		bucket                string
		expectedBlobCount     int64
		associatedProbability float64
		deletionWindowSize    int
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Run one garbage collection and print its counters as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if bucket != "" {
				cfg.GC.Bucket = bucket
			}
			if expectedBlobCount > 0 {
				cfg.GC.ExpectedBlobCount = expectedBlobCount
			}
			if associatedProbability > 0 {
				cfg.GC.AssociatedProbability = associatedProbability
			}
			if deletionWindowSize > 0 {
				cfg.GC.DeletionWindowSize = deletionWindowSize
			}
			// One-shot: no scheduler and no scrape endpoint.
			cfg.GC.Enabled = false
			cfg.Observability.MetricsAddr = ""

			logger := logging.New(logging.Config{
				Level:  logging.ParseLevel(cfg.Observability.LogLevel),
				Format: logging.ParseFormat(cfg.Observability.LogFormat),
				Output: cmd.ErrOrStderr(),
			})
			return runGC(cmd, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket to collect (default: the default bucket)")
	cmd.Flags().Int64Var(&expectedBlobCount, "expected-blob-count", 0, "Override the bloom filter expected blob count")
	cmd.Flags().Float64Var(&associatedProbability, "associated-probability", 0, "Override the bloom filter false positive rate")
	cmd.Flags().IntVar(&deletionWindowSize, "deletion-window-size", 0, "Override the number of blobs deleted per batch")
	return cmd
}

func runGC(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger) error {
	daemon, err := NewDaemon(DaemonOptions{Config: cfg, Logger: logger, Version: version})
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := daemon.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = daemon.Shutdown(shutdownCtx)
	}()

	snap, result, err := daemon.RunGC(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(gcReport{Result: result, Snapshot: snap}); err != nil {
		return err
	}
	if result != task.Completed {
		return errPartialRun
	}
	return nil
}
