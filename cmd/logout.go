// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command for clearing authentication state.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved password and login state",
	Long: `The logout command removes the pgAdmin password of the configured server
from the OS keychain and clears the recorded login state. The server session
cookie only lives in memory, so nothing needs to be revoked remotely.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newClientSession()
		if err != nil {
			return err
		}
		if err := sess.auth.Logout(); err != nil {
			return fmt.Errorf("failed to clear credentials: %w", err)
		}
		fmt.Println("✅ Saved password and login state have been removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
