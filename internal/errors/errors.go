// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages, so callers can decide between surfacing a failure and
// running a recovery flow (login, new transaction, reconnect).
//
// The package supports wrapping underlying errors while maintaining error kind information.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// ExecutionRejected indicates the server validated and rejected the SQL before running it.
	ExecutionRejected Kind = "execution_rejected"
	// ServerStatus indicates a terminal failure status reported while polling.
	ServerStatus Kind = "server_status"
	// Transport indicates a network or HTTP level failure.
	Transport Kind = "transport"
	// LoginRequired indicates the session expired and re-authentication is needed.
	LoginRequired Kind = "login_required"
	// TransactionRequired indicates the server has no transaction for the request.
	TransactionRequired Kind = "transaction_required"
	// ConnectionLost indicates the backend lost its database connection.
	ConnectionLost Kind = "connection_lost"
	// InvalidConfig indicates unusable configuration.
	InvalidConfig Kind = "invalid_config"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
