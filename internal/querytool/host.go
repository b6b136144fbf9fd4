// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package querytool

import (
	"context"
	"time"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/pending"
)

// Host is the editor view the coordinator reports to.
// All UI mutation goes through these calls; the coordinator never touches view state directly.
type Host interface {
	Emitter

	// TransID returns the server transaction the editor is bound to.
	TransID() string
	// PollFallbackTime is the delay before the next poll. It is read each time a poll is scheduled.
	PollFallbackTime() time.Duration
	// IsQueryTool reports whether the editor runs as a standalone query tool
	// (as opposed to a data grid view), which owns its toolbar.
	IsQueryTool() bool

	BeginQuery(sql string, startedAt time.Time)
	InitPollingFlags()
	SetIsQueryRunning(running bool)

	DisableToolButtons(disabled bool)
	DisableCancelButton(disabled bool)
	DisableFlashButton(disabled bool)

	// ClearErrorMarker removes the error highlight left by a previous execution.
	ClearErrorMarker()
	// UpdateMsgHistory appends a message to the history panel. clearGrid asks the view to
	// drop the previous result grid.
	UpdateMsgHistory(status bool, msg string, clearGrid bool)
	HighlightError(msg string)
	RenderAfterPoll(data backend.PollData)
	// ResetQueryHistory drops the link between the running query and the history entry
	// shared with other editor tabs.
	ResetQueryHistory()

	// SavePendingAction persists an action to replay once a recovery flow completes.
	SavePendingAction(action pending.Action)
	InitTransaction(ctx context.Context) error
	HandleConnectionLost(ctx context.Context, createTransaction bool, err *backend.HTTPError)
}

// UserManagement detects expired sessions and runs the login flow.
type UserManagement interface {
	IsLoginRequired(err *backend.HTTPError) bool
	Login(ctx context.Context) error
}

// Transport is the subset of the backend API the coordinator calls.
type Transport interface {
	StartQuery(ctx context.Context, transID string, req backend.StartRequest) (*backend.StartResponse, error)
	Poll(ctx context.Context, transID string) (*backend.PollResponse, error)
}
