// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides interfaces and implementations for communicating with the
// query tool backend service. It defines the API contract for starting and polling
// query executions, transaction initialization, cancellation and session login.
// The package includes both interface definitions and HTTP-based implementations.
package backend

import "context"

// API defines backend operations the CLI depends on.
// Implementations may call real HTTP endpoints or provide mocks for tests.
type API interface {
	GetVersion(ctx context.Context) (string, error)
	// StartQuery submits a statement for asynchronous execution in the given transaction.
	StartQuery(ctx context.Context, transID string, req StartRequest) (*StartResponse, error)
	// Poll fetches the current execution status of the given transaction.
	Poll(ctx context.Context, transID string) (*PollResponse, error)
	// CancelTransaction asks the server to cancel the running statement.
	// The running poll loop observes the cancellation as a Cancel status.
	CancelTransaction(ctx context.Context, transID string) error
	// InitializeQueryTool opens a new query tool transaction for the target database
	// and returns its identifier.
	InitializeQueryTool(ctx context.Context, target Target) (string, error)
	// Login authenticates the cookie session with the given credentials.
	Login(ctx context.Context, email, password string) error
}
