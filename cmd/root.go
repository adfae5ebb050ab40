// Package cmd implements the hcellrun command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "hcellrun",
	Short: "Unattended H-cell sampling scheduler",
	Long: `hcellrun plans and executes a multi-hour liquid handling run that
samples two-chamber H-cells on a fixed schedule. The full transfer plan is
validated before the robot moves.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
