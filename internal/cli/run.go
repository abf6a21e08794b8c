package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/internal/monitor"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sentinel daemon",
	Long: `Run starts the scheduled evaluation cycle, the nightly endpoint sweep,
and the HTTP API for device registration, health checks, and metrics.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	var devices server.DeviceManager
	var sweeper monitor.Sweeper
	if c.lifecycle != nil {
		devices = c.lifecycle
		sweeper = c.lifecycle
	}

	scheduler := monitor.NewScheduler(c.cycle, sweeper, c.logger, c.metrics)
	if err := scheduler.Start(cfg.Monitor.CycleSchedule, cfg.Monitor.SweepSchedule); err != nil {
		return err
	}

	apiServer := server.NewServer(devices, c.registry, c.logger)
	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("sentinel started", "listen", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		c.logger.Info("shutting down", "signal", sig.String())

		<-scheduler.Stop().Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	c.logger.Info("sentinel stopped")
	return nil
}
