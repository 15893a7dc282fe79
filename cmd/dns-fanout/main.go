package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mstrel/dns-fanout/internal/cli"
)

var version = "dev" // Will be set by ldflags during build

func main() {
	rootCmd := &cobra.Command{
		Use:     "dns-fanout",
		Short:   "Distributes DNS records across providers with orphan lifecycle management",
		Version: version,
	}

	rootCmd.AddCommand(cli.NewServeCommand())
	rootCmd.AddCommand(cli.NewSweepCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
