// Package cmd implements the command-line interface for storesync.
// It provides the root command and subcommands for running the scheduler
// and managing catalog sources.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/storesync/cmd/common"
	cmdcrawl "github.com/jonesrussell/storesync/cmd/crawl"
	cmdscheduler "github.com/jonesrussell/storesync/cmd/scheduler"
	cmdsources "github.com/jonesrussell/storesync/cmd/sources"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "storesync",
		Short: "Catalog ingestion from external storefronts",
		Long: `storesync crawls sellers' external storefronts on a schedule,
normalizes the listings, and reconciles them into the canonical catalog.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to viper.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	common.Bind(&cfgFile, &debug)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("storesync version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(cmdscheduler.Command())
	rootCmd.AddCommand(cmdcrawl.Command())
	rootCmd.AddCommand(cmdsources.Command())
}
