// Package cli implements the sentinel command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/internal/config"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/internal/monitor"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/alerts"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/inference"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/metrics"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/push"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Cloud Budget Sentinel - Threshold-based cloud spend alerting",
	Long: `Cloud Budget Sentinel watches cloud spending against a monthly budget
threshold and alerts across email, SMS, and mobile push when it is
crossed. Alerts are optionally enriched with AI cost analysis under a
strict monthly enrichment budget of their own.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.sentinel/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

func retryConfig(cfg *config.Config) retry.Config {
	rc := retry.DefaultConfig()
	if cfg.Retry.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelay > 0 {
		rc.BaseDelay = cfg.Retry.BaseDelay
	}
	if cfg.Retry.MaxDelay > 0 {
		rc.MaxDelay = cfg.Retry.MaxDelay
	}
	if cfg.Retry.BackoffMultiplier > 0 {
		rc.BackoffMultiplier = cfg.Retry.BackoffMultiplier
	}
	return rc
}

// components holds the wired service graph shared by the run, cycle,
// sweep, and health commands.
type components struct {
	store     storage.Store
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	lifecycle *push.Lifecycle
	cycle     *monitor.Cycle
	logger    *slog.Logger
}

func (c *components) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// buildComponents wires the full service graph from config. lifecycle is
// nil when the push channel is disabled.
func buildComponents(cfg *config.Config) (*components, error) {
	logger := newLogger(cfg)
	rc := retryConfig(cfg)

	store, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var lifecycle *push.Lifecycle
	if cfg.Push.Enabled {
		platform := push.NewHTTPPlatform(cfg.Push.PlatformURL, cfg.Push.PlatformAppID, cfg.Push.PlatformAPIKey)
		lifecycle = push.NewLifecycle(platform, store, rc, logger)
	}

	costModel := &inference.CostModel{Model: "disabled"}
	var invoker inference.Invoker
	if cfg.Inference.Enabled {
		costModel, err = inference.LoadCostModel(cfg.Inference.CostModelPath)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("load cost model: %w", err)
		}
		invoker = inference.NewHTTPClient(cfg.Inference.URL, cfg.Inference.APIKey, cfg.Inference.Model)
	}

	ledger := inference.NewLedger(cfg.Inference.BudgetUSD, store, logger)
	enhancer := inference.NewEnhancer(inference.Config{
		Enabled:           cfg.Inference.Enabled,
		FallbackOnError:   cfg.Inference.FallbackOnError,
		CacheTTL:          cfg.Inference.CacheTTL,
		RequestsPerMinute: cfg.Inference.RequestsPerMinute,
		Temperature:       cfg.Inference.Temperature,
	}, invoker, costModel, ledger, rc, logger, m)

	publisher := alerts.NewHTTPPublisher(cfg.Alerts.GatewayURL, cfg.Alerts.Secret)
	deliverer := alerts.NewDeliverer(publisher, cfg.Alerts.Topic, rc, logger, m)

	source := monitor.NewHTTPCostSource(cfg.CostSource.URL, cfg.CostSource.APIKey, cfg.CostSource.Timeout)
	cycle := monitor.NewCycle(source, enhancer, deliverer, cfg.Push.Channel(),
		cfg.Monitor.ThresholdUSD, cfg.Monitor.MinServiceCost, rc, logger)

	return &components{
		store:     store,
		registry:  registry,
		metrics:   m,
		lifecycle: lifecycle,
		cycle:     cycle,
		logger:    logger,
	}, nil
}
