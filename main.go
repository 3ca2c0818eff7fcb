package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"smartsdlc/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "smartsdlc",
	Short: "SmartSDLC task gateway",
	Long: `smartsdlc serves the developer-productivity task gateway and submits tasks to it.

Commands:
  serve    Run the HTTP gateway
  submit   Send one task to a running gateway, falling back to a local simulation`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// a missing .env is normal
		_ = godotenv.Load()
	},
}

func init() {
	defaultCfg := os.Getenv("SMARTSDLC_CONFIG")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultCfg, "Config file, JSON or YAML (default: config.json)")
	rootCmd.AddCommand(serveCmd, submitCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
