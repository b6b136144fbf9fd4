// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/editor"
	"pgquery/cli/internal/errors"
	"pgquery/cli/internal/httperrors"
	"pgquery/cli/internal/pending"
	"pgquery/cli/internal/querytool"
	"pgquery/cli/internal/terminal"
)

var (
	execFile    string
	execExplain bool
	execTransID string
)

// execCmd runs one statement through the query tool.
var execCmd = &cobra.Command{
	Use:   "exec [SQL]",
	Short: "Execute SQL and print the result",
	Long: `The exec command submits SQL to the query tool server and polls until it
finishes. The statement is taken from the arguments, from --file, or from stdin.

A new query tool transaction is opened unless --trans-id binds to an existing one.
When the session expired, the transaction is gone or the database connection was
lost, the command recovers and replays the statement once.

Press Ctrl+C once to cancel the statement on the server, twice to stop waiting.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sql, err := readSQL(args, execFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if strings.TrimSpace(sql) == "" {
			return fmt.Errorf("no SQL given (pass it as an argument, with --file, or on stdin)")
		}

		sess, err := newClientSession()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		transID := execTransID
		if transID == "" {
			transID, err = sess.initTransaction(ctx)
			if err != nil {
				return reportTransport(err, "opening a query tool transaction", sess.cfg.Server)
			}
			logger.Debug("transaction initialized", logger.Args("trans_id", transID))
		}

		interactive := terminal.IsInteractive()
		var status io.Writer
		if !interactive {
			status = os.Stderr
		}
		view := editor.New(sess.client, editor.Options{
			Out:          cmd.OutOrStdout(),
			Status:       status,
			Interactive:  interactive,
			QueryTool:    sess.cfg.QueryTool,
			PollFallback: sess.cfg.PollFallback,
			Target:       sess.cfg.Target,
			TransID:      transID,
			Pending:      pending.New(sess.cfg.PendingTTL),
			Logger:       logger,
		})
		coord := querytool.New(view, sess.auth, sess.client, querytool.WithLogger(logger))
		defer coord.Close()

		stop := watchInterrupt(ctx, func() {
			pterm.Warning.Println("Cancelling query...")
			cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sess.client.CancelTransaction(cctx, view.TransID()); err != nil {
				logger.Warn("cancel request failed", logger.Args("error", err.Error()))
			}
		}, coord.Close)
		defer stop()

		r := &statementRunner{coord: coord, view: view}
		outcome, err := r.run(ctx, sql, execExplain)
		logger.Debug("statement finished", logger.Args("outcome", outcome.String(), "trans_id", view.TransID()))
		if err == nil {
			return nil
		}
		if errors.Is(err, errors.Transport) && outcome == querytool.OutcomeNotConnected {
			fmt.Fprintln(os.Stderr, httperrors.Describe(err, "running the query", sess.cfg.Server))
		}
		return silentError{err}
	},
}

func init() {
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "read SQL from file")
	execCmd.Flags().BoolVar(&execExplain, "explain", false, "run the statement as EXPLAIN")
	execCmd.Flags().StringVar(&execTransID, "trans-id", "", "use an existing query tool transaction")
	rootCmd.AddCommand(execCmd)
}

// readSQL takes the statement from args, then file, then a non-terminal stdin.
func readSQL(args []string, file string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read SQL file: %w", err)
		}
		return string(b), nil
	}
	if f, ok := stdin.(*os.File); ok && f == os.Stdin && terminal.IsStdinTerminal() {
		return "", nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read SQL from stdin: %w", err)
	}
	return string(b), nil
}

// statementRunner executes a statement and replays it once after a recovery flow.
type statementRunner struct {
	coord interface {
		Execute(ctx context.Context, sql string, explainPlan bool) error
		Wait(ctx context.Context) (querytool.Outcome, error)
	}
	view interface {
		TakePending() (pending.Action, bool)
		Reconnected() bool
	}
}

func (r *statementRunner) run(ctx context.Context, sql string, explain bool) (querytool.Outcome, error) {
	outcome, err := r.once(ctx, sql, explain)
	if !outcome.Recoverable() {
		return outcome, err
	}

	action, ok := r.view.TakePending()
	if !ok || action.Name != pending.ActionExecute {
		return outcome, err
	}
	if outcome == querytool.OutcomeConnectionLost && !r.view.Reconnected() {
		return outcome, err
	}
	logger.Info("replaying statement", logger.Args("after", outcome.String()))
	return r.once(ctx, action.SQL, action.ExplainPlan)
}

func (r *statementRunner) once(ctx context.Context, sql string, explain bool) (querytool.Outcome, error) {
	if err := r.coord.Execute(ctx, sql, explain); err != nil {
		return querytool.OutcomeNone, err
	}
	return r.coord.Wait(ctx)
}

// watchInterrupt calls cancel on the first interrupt and abort on the second.
// The returned function stops watching.
func watchInterrupt(ctx context.Context, cancel, abort func()) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})
	go func() {
		n := 0
		for {
			select {
			case <-sigs:
				n++
				if n == 1 {
					cancel()
					continue
				}
				abort()
				return
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// reportTransport prints troubleshooting help for network failures.
// Errors carrying a server response are returned unchanged.
func reportTransport(err error, doing, server string) error {
	if he, ok := backend.AsHTTPError(err); ok && he.ReadyState == backend.ReadyStateDone {
		return err
	}
	return httperrors.FormatNetworkError(err, doing, server)
}
