package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the push platform and estimate certificate health",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Push.Enabled {
		fmt.Println("push channel is disabled")
		return nil
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.lifecycle.ValidatePlatformHealth(ctx); err != nil {
		fmt.Printf("platform: unhealthy (%v)\n", err)
	} else {
		fmt.Println("platform: ok")
	}

	cert := c.lifecycle.EstimateCertificateHealth(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cert); err != nil {
		return err
	}
	if cert.Level != "ok" {
		os.Exit(1)
	}
	return nil
}
