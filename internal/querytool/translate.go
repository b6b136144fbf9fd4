// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package querytool

import (
	"net/http"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/errors"
	"pgquery/cli/internal/pending"
)

// IsNewTransactionRequired reports whether the server lost the editor's transaction.
func IsNewTransactionRequired(he *backend.HTTPError) bool {
	return he != nil && he.Status == http.StatusNotFound && he.Info() == backend.InfoTransactionRequired
}

// IsConnectionLost reports whether the backend dropped its database connection.
func IsConnectionLost(he *backend.HTTPError) bool {
	return he != nil && he.Status == http.StatusServiceUnavailable && he.Info() == backend.InfoConnectionLost
}

// IsLoginRequired reports whether the session expired.
func IsLoginRequired(he *backend.HTTPError) bool {
	return he != nil && he.Status == http.StatusUnauthorized && he.Info() == backend.InfoLoginRequired
}

// extractErrorMessage prefers the server's errormsg over the generic response text.
func extractErrorMessage(he *backend.HTTPError) string {
	return he.Message()
}

// asHTTPError treats any error without a response as ready state 0.
func asHTTPError(err error) *backend.HTTPError {
	if he, ok := backend.AsHTTPError(err); ok {
		return he
	}
	return &backend.HTTPError{ReadyState: backend.ReadyStateUnsent, ErrorMsg: err.Error(), Err: err}
}

func (c *Coordinator) pendingExecute(run *execution) pending.Action {
	return pending.Action{
		Name:        pending.ActionExecute,
		TransID:     c.host.TransID(),
		SQL:         run.sql,
		ExplainPlan: run.explain,
	}
}

// handleStartError translates a failed start call. Recovery flows return early
// and leave the history untouched.
func (c *Coordinator) handleStartError(run *execution, err error) {
	he := asHTTPError(err)
	c.logger.Debug("start failed", c.logger.Args("ready_state", he.ReadyState, "status", he.Status, "info", he.Info()))

	c.enableButtons()
	c.indicator.Hide()

	if he.ReadyState == backend.ReadyStateUnsent {
		c.host.UpdateMsgHistory(false, MsgNotConnected, true)
		c.finish(run, OutcomeNotConnected, errors.Wrap(errors.Transport, MsgNotConnected, err))
		return
	}

	if c.users.IsLoginRequired(he) {
		c.host.SavePendingAction(c.pendingExecute(run))
		if lerr := c.users.Login(run.parent); lerr != nil {
			c.logger.Warn("login failed", c.logger.Args("error", lerr.Error()))
		}
		c.finish(run, OutcomeLoginRequired, errors.Wrap(errors.LoginRequired, msgLoginRequired, err))
		return
	}

	if IsNewTransactionRequired(he) {
		c.host.SavePendingAction(c.pendingExecute(run))
		if terr := c.host.InitTransaction(run.parent); terr != nil {
			c.logger.Warn("transaction initialization failed", c.logger.Args("error", terr.Error()))
		}
		c.finish(run, OutcomeTransactionRequired, errors.Wrap(errors.TransactionRequired, msgNewTransaction, err))
		return
	}

	msg := extractErrorMessage(he)
	outcome, kind := OutcomeFailed, errors.Transport

	if IsConnectionLost(he) {
		outcome, kind = OutcomeConnectionLost, errors.ConnectionLost
		c.host.SavePendingAction(c.pendingExecute(run))
		c.async.Add(1)
		go func() {
			defer c.async.Done()
			c.host.HandleConnectionLost(run.parent, false, he)
		}()
	}

	c.host.UpdateMsgHistory(false, msg, true)
	c.finish(run, outcome, errors.Wrap(kind, msg, err))
}

// handlePollError translates a failed poll call.
func (c *Coordinator) handlePollError(run *execution, err error) {
	he := asHTTPError(err)
	c.logger.Debug("poll failed", c.logger.Args("ready_state", he.ReadyState, "status", he.Status, "info", he.Info()))

	c.host.ResetQueryHistory()
	c.indicator.Hide()
	c.enableIfQueryTool()

	if he.ReadyState == backend.ReadyStateUnsent {
		c.host.UpdateMsgHistory(false, MsgNotConnected, true)
		c.finish(run, OutcomeNotConnected, errors.Wrap(errors.Transport, MsgNotConnected, err))
		return
	}

	if c.users.IsLoginRequired(he) {
		if lerr := c.users.Login(run.parent); lerr != nil {
			c.logger.Warn("login failed", c.logger.Args("error", lerr.Error()))
		}
		c.finish(run, OutcomeLoginRequired, errors.Wrap(errors.LoginRequired, msgLoginRequired, err))
		return
	}

	msg := extractErrorMessage(he)
	c.host.UpdateMsgHistory(false, msg, true)
	c.host.HighlightError(msg)
	c.finish(run, OutcomeFailed, errors.Wrap(errors.Transport, msg, err))
}
