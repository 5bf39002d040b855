// Package commands implements the ordermesh CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ordermesh-systems/ordermesh/internal/config"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ordermesh",
	Short: "Order lifecycle event pipeline",
	Long: `ordermesh publishes order lifecycle events onto a fan-out bus and runs
the independent consumers that project them: an order store, an analytics
aggregate, and a notification dispatcher.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger = logging.New(
			logging.ParseLevel(cfg.Logging.Level),
			cfg.Logging.Format,
		)
		logging.SetDefault(logger)
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ordermesh.yaml)")
}
