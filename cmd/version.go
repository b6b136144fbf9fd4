// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pgquery/cli/internal/backend"
)

var (
	// Version holds the CLI version information.
	// This value is typically set at build time using -ldflags.
	Version = "0.0.0-dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI and server version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printVersion prints the CLI version and, when reachable, the server version.
func printVersion(cmd *cobra.Command) error {
	fmt.Fprintf(cmd.OutOrStdout(), "pgquery %s\n", Version)

	cfg, err := requireConfig()
	if err != nil {
		return nil
	}
	client, err := backend.New(cfg.Server, backend.DefaultEndpoints(), 5*time.Second)
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	serverVersion, err := client.GetVersion(ctx)
	if err != nil {
		logger.Debug("server version unavailable", logger.Args("error", err.Error()))
		serverVersion = "unknown"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "server %s\n", serverVersion)
	return nil
}
