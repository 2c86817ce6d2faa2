/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/krobus00/bracket-bot/internal/config"
	"github.com/krobus00/bracket-bot/internal/constant"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bracket-bot",
	Short: "Place bracketed market entries on a perpetuals exchange",
	Long: `bracket-bot opens a market long on a fixed schedule and protects every entry
with a take-profit and a stop-loss conditional order.

Prices, account state and order submission go through the configured exchange
gateway. Run it in paper mode first: paper mode reads live prices but keeps
fills in memory.`,
	Version: config.ServiceVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(configPath); err != nil {
			return err
		}

		return setupLogger(config.Env)
	},
}

// setupLogger applies the log section of the loaded config to the global logrus logger.
func setupLogger(env *config.EnvConfig) error {
	level, err := logrus.ParseLevel(env.Log.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log.log_level %q: %w", env.Log.LogLevel, err)
	}

	logrus.SetLevel(level)
	logrus.SetReportCaller(env.Log.ShowCaller)
	if env.Env == constant.ProductionEnvironment {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./config.yml)")
}
