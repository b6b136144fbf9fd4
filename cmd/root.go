// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the pgquery CLI.
// It implements subcommands for running SQL through a pgAdmin query tool
// server, authentication and configuration using the Cobra CLI framework.
package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pgquery/cli/internal/config"
	"pgquery/cli/internal/logging"
)

var (
	showVersion bool
	cfgFile     string
	verbose     bool

	// appConfig and logger are set by the root pre-run hook.
	appConfig *config.Config
	logger    = logging.Nop()
)

// silentError marks a failure that was already reported to the user.
type silentError struct{ err error }

func (e silentError) Error() string { return e.err.Error() }
func (e silentError) Unwrap() error { return e.err }

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pgquery",
	Short: "Run SQL through a pgAdmin query tool server",
	Long: `pgquery submits SQL to a pgAdmin-compatible query tool server, polls until the
statement finishes and prints the result grid. Expired sessions, lost transactions
and dropped database connections are recovered and the statement is replayed once.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		appConfig = cfg
		logger = logging.New(level, os.Stderr)
		logger.Debug("config loaded", logger.Args("file", cfg.File, "server", cfg.Server))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			return printVersion(cmd)
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var silent silentError
		if !stderrors.As(err, &silent) {
			pterm.Error.WithWriter(os.Stderr).Println(logging.PresentError("pgquery", err))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and server version information")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/pgquery/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.String("server", config.DefaultServer, "query tool server base URL")
	pf.String("email", "", "pgAdmin account email")
	pf.String("log-level", config.DefaultLogLevel, "log level (trace, debug, info, warn, error, disabled)")
	pf.Duration("timeout", config.DefaultTimeout, "HTTP request timeout")
	pf.Duration("poll-fallback", config.DefaultPollFallback, "delay between poll requests")
	pf.Int("server-group-id", 1, "server group of the target database")
	pf.Int("server-id", 1, "server of the target database")
	pf.Int("database-id", 1, "target database")
}

// requireConfig returns the loaded configuration.
func requireConfig() (*config.Config, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return appConfig, nil
}
