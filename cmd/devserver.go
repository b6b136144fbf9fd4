// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pgquery/cli/internal/devserver"
	"pgquery/cli/internal/dsn"
	"pgquery/cli/internal/logging"
	"pgquery/cli/internal/sqlexec"
)

// DefaultDevEmail is the account the dev server accepts when no email is configured.
const DefaultDevEmail = "admin@localhost"

var (
	devAddr          string
	devDSN           string
	devPassword      string
	devSessionSecret string
	devQueryTimeout  time.Duration
)

// devserverCmd serves the query tool endpoints against a PostgreSQL database.
var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local query tool server backed by PostgreSQL",
	Long: `The devserver command serves the query tool HTTP endpoints (login, initialize,
start, poll, cancel) on top of a PostgreSQL database, so pgquery can be used and
tested without a pgAdmin installation.

The database is given with --dsn or the DATABASE_URL environment variable. The login
password is given with --password or PGQUERY_DEVSERVER_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		connString, err := dsn.Resolve(devDSN, os.Getenv("DATABASE_URL"))
		if err != nil {
			return err
		}
		password := firstNonEmpty(devPassword, os.Getenv("PGQUERY_DEVSERVER_PASSWORD"))
		if password == "" {
			return fmt.Errorf("no login password: pass --password or set PGQUERY_DEVSERVER_PASSWORD")
		}
		email := firstNonEmpty(cfg.Email, DefaultDevEmail)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		db, err := sqlexec.Open(openCtx, connString)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", logging.Mask(connString), err)
		}
		defer db.Close()

		srv, err := devserver.New(devserver.Config{
			Email:         email,
			Password:      password,
			SessionSecret: devSessionSecret,
			Runner:        db,
			Logger:        logger,
			QueryTimeout:  devQueryTimeout,
		})
		if err != nil {
			return err
		}

		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("pgquery dev server")).
			WithPadding(1).
			Println(fmt.Sprintf("Listening on http://%s\nDatabase: %s\nLogin: %s", devAddr, logging.Mask(connString), email))

		return srv.Serve(ctx, devAddr)
	},
}

func init() {
	f := devserverCmd.Flags()
	f.StringVar(&devAddr, "addr", "127.0.0.1:5050", "listen address")
	f.StringVar(&devDSN, "dsn", "", "PostgreSQL connection string")
	f.StringVar(&devPassword, "password", "", "login password")
	f.StringVar(&devSessionSecret, "session-secret", "", "session cookie signing key (random when empty)")
	f.DurationVar(&devQueryTimeout, "query-timeout", 0, "statement timeout (0 means none)")
	rootCmd.AddCommand(devserverCmd)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
