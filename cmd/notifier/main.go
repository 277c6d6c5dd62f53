package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dlmm-notifier/internal/config"
	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/extraction"
	"dlmm-notifier/internal/observability"
	"dlmm-notifier/internal/watcher"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "notifier",
		Short:        "Meteora DLMM pool creation notifier",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("strategy", extraction.StrategyScan, "account extraction strategy (scan, positional, auto)")
	root.PersistentFlags().String("metadata", "das", "metadata source (das, metaplex, chain)")
	root.PersistentFlags().Duration("rpc-timeout", 30*time.Second, "RPC request timeout")
	root.PersistentFlags().Int("rpc-max-retries", 3, "RPC retry attempts")
	root.PersistentFlags().String("store", "none", "pool creation store (none, memory, postgres, clickhouse)")
	root.PersistentFlags().String("postgres-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("clickhouse-dsn", "", "ClickHouse DSN")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Subscribe to DLMM logs and send notifications",
		RunE:  runNotifier,
	}
	runCmd.Flags().Int("port", 3000, "health and metrics port")
	runCmd.Flags().Bool("metrics", true, "expose /metrics")
	runCmd.Flags().Int("max-in-flight", 0, "maximum concurrent handlers, 0 for unbounded")
	runCmd.Flags().Duration("handler-timeout", 2*time.Minute, "timeout for one extraction and delivery")
	runCmd.Flags().Int("retry-max-attempts", 10, "consecutive subscription failures before exiting, 0 for unlimited")
	runCmd.Flags().Duration("retry-initial-delay", 5*time.Second, "delay after the first subscription failure")
	runCmd.Flags().Duration("retry-max-delay", 2*time.Minute, "maximum delay between subscription attempts")
	runCmd.Flags().Float64("retry-multiplier", 2.0, "subscription retry backoff multiplier")
	runCmd.Flags().String("dedup", "none", "signature dedup backend (none, memory, redis, bolt)")
	runCmd.Flags().Duration("dedup-ttl", 24*time.Hour, "how long signatures are remembered")
	runCmd.Flags().String("redis-addr", "", "redis address for dedup")
	runCmd.Flags().String("bolt-path", "./data/dedup.bolt", "bbolt file for dedup")
	runCmd.Flags().StringSlice("kafka-brokers", nil, "kafka brokers (comma-separated)")
	runCmd.Flags().String("kafka-topic", "dlmm.pool_creations", "kafka topic")
	root.AddCommand(runCmd)

	extractCmd := &cobra.Command{
		Use:   "extract <signature>",
		Short: "Extract one pool creation transaction and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
	root.AddCommand(extractCmd)

	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently stored pool creations",
		RunE:  runRecent,
	}
	recentCmd.Flags().Int("limit", 20, "number of records to print")
	root.AddCommand(recentCmd)

	return root
}

// loadConfig reads .env, the config file, environment and flags.
func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, nil, err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runNotifier(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := observability.NewServer(cfg.Addr(), cfg.MetricsEnabled)
	go func() {
		logger.Info("health server listening", zap.String("addr", cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	rpc := newRPCClient(cfg)

	extractor, err := newExtractor(cfg, rpc, logger)
	if err != nil {
		return err
	}

	notifier, closeNotifier := newNotifier(cfg)
	defer closeNotifier()

	deduper, err := newDeduper(cfg)
	if err != nil {
		return err
	}
	defer deduper.Close()

	opts := []watcher.Option{watcher.WithLogger(logger), watcher.WithDeduper(deduper)}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if store != nil {
		opts = append(opts, watcher.WithStore(cfg.StoreBackend, store))
	}

	w := watcher.New(watcher.Config{
		ProgramID:      domain.DLMMProgramID,
		Marker:         domain.PoolCreationMarker,
		MaxInFlight:    cfg.MaxInFlight,
		HandlerTimeout: cfg.HandlerTimeout,
		Retry: watcher.RetryPolicy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			Multiplier:   cfg.RetryMultiplier,
		},
	}, newDialer(cfg, logger), extractor, notifier, opts...)

	logger.Info("starting notifier",
		zap.String("program", domain.DLMMProgramID),
		zap.String("strategy", cfg.Strategy),
		zap.String("dedup", cfg.DedupBackend),
		zap.String("store", cfg.StoreBackend),
	)

	if err := w.Run(ctx); err != nil {
		logger.Error("notifier stopped", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor, err := newExtractor(cfg, newRPCClient(cfg), logger)
	if err != nil {
		return err
	}

	pc, err := extractor.Extract(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(pc)
}

func runRecent(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.StoreBackend != "postgres" && cfg.StoreBackend != "clickhouse" {
		return fmt.Errorf("recent requires --store postgres or clickhouse, got %q", cfg.StoreBackend)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.ListRecent(ctx, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, pc := range records {
		if err := enc.Encode(pc); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
