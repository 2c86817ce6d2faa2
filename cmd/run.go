/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/bracket-bot/internal/bootstrap"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bracket trading loop",
	Long:  `Authenticate against the exchange and place one bracket per cycle until interrupted.`,
	Run:   bootstrap.StartBracketBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}
