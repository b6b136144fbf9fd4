package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var cancelTransID string

// cancelCmd asks the server to cancel the statement running in a transaction.
var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the statement running in a query tool transaction",
	Long: `The cancel command asks the server to cancel the statement running in the given
transaction. A pgquery exec waiting on that transaction reports "Execution Cancelled!".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cancelTransID == "" {
			return fmt.Errorf("--trans-id is required")
		}
		sess, err := newClientSession()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		err = sess.withLogin(ctx, func() error {
			return sess.client.CancelTransaction(ctx, cancelTransID)
		})
		if err != nil {
			return reportTransport(err, "cancelling the query", sess.cfg.Server)
		}
		pterm.Success.Printfln("Cancel requested for transaction %s", cancelTransID)
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelTransID, "trans-id", "", "transaction to cancel")
	rootCmd.AddCommand(cancelCmd)
}
