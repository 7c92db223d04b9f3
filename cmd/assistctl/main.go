// Package main implements the assistctl CLI tool for assistant administration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "assistctl",
		Short:   "Assistant CLI tool",
		Long:    `assistctl is a command-line tool for managing assistant org configurations and service status.`,
		Version: version,
	}

	// Add subcommands
	rootCmd.AddCommand(orgsCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
