// Package main runs the skills assessment HTTP service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "assessment-service",
	Short: "Proctored, timed technical skills assessments",
	Long: `assessment-service generates role-specific multiple choice tests, runs
timed proctored sessions against webcam frames and stores scored results.

Configuration is read from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
