// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"fmt"
	"math/rand"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pgquery/cli/internal/config"
	"pgquery/cli/internal/terminal"
)

var (
	loginForce         bool
	loginPasswordStdin bool
	loginNoRemember    bool
)

// loginCmd authenticates the CLI against the query tool server.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Log in to the query tool server",
	Long: `The login command authenticates with the pgAdmin account configured by --email
(or the email config key) and stores the password in the OS keychain, so expired
sessions can be renewed without prompting.

If already logged in to the configured server, it does nothing unless --force is set.
Use --password-stdin to read the password from stdin in scripts.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newClientSession()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if st, ok, _ := sess.auth.WhoAmI(); ok && !loginForce {
			fmt.Printf("Already logged in as %s\n", st.Email)
			return nil
		}

		email := sess.cfg.Email
		if email == "" {
			if !terminal.IsInteractive() {
				return fmt.Errorf("no email configured: pass --email")
			}
			if email, err = terminal.ReadLine("pgAdmin email: "); err != nil {
				return err
			}
			email = strings.TrimSpace(email)
		}

		var password string
		if loginPasswordStdin {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password from stdin: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		} else {
			if password, err = terminal.ReadPassword(fmt.Sprintf("Password for %s: ", email)); err != nil {
				return err
			}
		}
		if password == "" {
			return fmt.Errorf("empty password")
		}

		if err := sess.auth.LoginWithPassword(ctx, email, password, !loginNoRemember); err != nil {
			return reportTransport(err, "logging in", sess.cfg.Server)
		}

		if email != sess.cfg.Email {
			if path, err := config.Set(cfgFile, "email", email); err != nil {
				logger.Warn("could not save email to config", logger.Args("error", err.Error()))
			} else {
				logger.Debug("email saved", logger.Args("file", path))
			}
		}

		pterm.Success.Println(getRandomLoginGreeting(email))
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "log in again even if already logged in")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	loginCmd.Flags().BoolVar(&loginNoRemember, "no-remember", false, "do not store the password in the keychain")
	rootCmd.AddCommand(loginCmd)
}

// getRandomLoginGreeting returns a random greeting phrase with the user's identifier
func getRandomLoginGreeting(identifier string) string {
	greetings := []string{
		"Welcome back, %s!",
		"Logged in as %s",
		"You're all set, %s!",
		"Hello %s! Ready to query?",
		"Authentication complete, hi %s!",
	}
	return fmt.Sprintf(greetings[rand.Intn(len(greetings))], identifier)
}
