package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pders01/dispatch/internal/config"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	flagConfig string
	flagDB     string
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "News headlines with an offline cache",
	Long: `dispatch fetches headlines from a NewsAPI-compatible service, caches them
locally and keeps serving them when the service is rate limited or offline.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagQuiet {
			showBanner(cmd.OutOrStdout())
		}
		return headlinesCmd.RunE(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dispatch %s\n", Version)
		fmt.Println("News reader with offline fallback")
		fmt.Println("github.com/pders01/dispatch")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configGenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a default config file",
	Run: func(cmd *cobra.Command, args []string) {
		path := config.DefaultPath()
		if err := config.GenerateDefaultConfig(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default configuration at: %s\n", path)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "path to database file (overrides config)")
	rootCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "skip startup banner")

	configCmd.AddCommand(configGenCmd)
	rootCmd.AddCommand(versionCmd, configCmd)
	registerNewsCommands(rootCmd)
	registerCacheCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
