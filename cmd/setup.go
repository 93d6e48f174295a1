package main

import (
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/fgi/config"
	"github.com/vadiminshakov/fgi/internal/setup"
)

var setupOutput string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a configuration file interactively",
	RunE: func(_ *cobra.Command, _ []string) error {
		return setup.RunTUI(setupOutput)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().StringVar(&setupOutput, "output", config.DefaultPath, "where to write the generated config")
}
