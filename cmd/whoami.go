package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// whoamiCmd represents the whoami command for displaying current authentication state.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account logged in to the configured server",
	Long: `The whoami command shows the pgAdmin account recorded at the last login to the
configured server, and whether the server is reachable right now.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newClientSession()
		if err != nil {
			return err
		}

		st, ok, err := sess.auth.WhoAmI()
		if err != nil {
			logger.Debug("login state unreadable", logger.Args("error", err.Error()))
		}
		if !ok {
			fmt.Println("🔒 You're not logged in yet!")
			fmt.Println("   Run 'pgquery login' to get started.")
			return nil
		}

		fmt.Printf("👤 Current user: %s\n", st.Email)
		fmt.Printf("   Server: %s (since %s)\n", st.Server, st.LoggedInAt.Format("2006-01-02 15:04"))
		if v, err := sess.client.GetVersion(cmd.Context()); err == nil {
			fmt.Printf("   Server version: %s\n", v)
		} else {
			fmt.Println("   Server is not reachable")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
