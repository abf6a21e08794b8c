package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep invalid push endpoints once and exit",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().Duration("timeout", 5*time.Minute, "Overall sweep timeout")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Push.Enabled {
		return fmt.Errorf("push channel is disabled; nothing to sweep")
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	removed := c.lifecycle.SweepAll(ctx)
	fmt.Printf("removed %d invalid endpoint(s)\n", len(removed))
	for _, id := range removed {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
