package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one evaluation cycle and exit",
	Long: `Cycle reads the current spend, compares it against the threshold, and
delivers an alert when the threshold is crossed. Prints the delivery
outcome as JSON; prints nothing when spend is under the threshold.`,
	RunE: runCycle,
}

func init() {
	rootCmd.AddCommand(cycleCmd)

	cycleCmd.Flags().Duration("timeout", 5*time.Minute, "Overall cycle timeout")
}

func runCycle(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	outcome, err := c.cycle.Run(ctx)
	if err != nil {
		return err
	}
	if outcome == nil {
		fmt.Fprintln(os.Stderr, "spend under threshold, no alert sent")
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}
