// Customo Core - robotics storefront and device management backend.
//
// This is the main entry point for the Customo Core application. One binary
// serves the REST API, the real-time device channel and the maintenance
// commands used to prepare a deployment:
//
//	customo serve          start the API server (default)
//	customo migrate        apply, roll back or list schema migrations
//	customo create-admin   create or promote an administrator account
//	customo version        print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// Default configuration file path. A missing default file is not an error.
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar overrides the default configuration path.
	configEnvVar = "CUSTOMO_CONFIG"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "customo",
	Short: "Customo Core - robotics storefront and device management API",
	Long:  "Customo Core serves the storefront REST API and the real-time device channel",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// .env is a development convenience; its absence is normal.
		_ = godotenv.Load()
	},
	// Default to serve command if no subcommand provided
	RunE: runServe,
	// Errors are printed by main.
	SilenceErrors: true,
	SilenceUsage:  true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"path to config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runServe wires signal handling around run.
func runServe(_ *cobra.Command, _ []string) error {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	path, optional := getConfigPath(configFlag)
	return run(ctx, path, optional)
}

// getConfigPath resolves the configuration file location.
// Precedence: --config flag, CUSTOMO_CONFIG, then the default path.
// The returned bool is true when the file may be absent.
func getConfigPath(flag string) (string, bool) {
	if flag != "" {
		return flag, false
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path, false
	}
	return defaultConfigPath, true
}

func versionString() string {
	return fmt.Sprintf("customo %s (commit %s, built %s)", version, commit, date)
}
