package querytool

import (
	"strconv"
	"time"
)

// State is the transient data of the execution in progress.
// It is reset by every Execute and never persisted.
type State struct {
	Query               string
	ExplainPlan         bool
	Running             bool
	StartedAt           time.Time
	RowsAffected        int64
	CanEdit             bool
	CanFilter           bool
	InfoNotifierTimeout int
}

// Outcome is the terminal result of an execution.
type Outcome int

const (
	// OutcomeNone means nothing was submitted, or the wait ended before a terminal result.
	OutcomeNone Outcome = iota
	// OutcomeRendered means the result was handed to the view.
	OutcomeRendered
	// OutcomeRejected means the server refused the statement before running it.
	OutcomeRejected
	// OutcomeCancelled means the execution was cancelled on the server.
	OutcomeCancelled
	// OutcomeNotConnected means the server or its database connection was unreachable.
	OutcomeNotConnected
	// OutcomeConnectionLost means the backend dropped its database connection; the
	// pending action was saved and the reconnect handler ran.
	OutcomeConnectionLost
	// OutcomeLoginRequired means the session expired and the login flow was triggered.
	OutcomeLoginRequired
	// OutcomeTransactionRequired means a new transaction was requested.
	OutcomeTransactionRequired
	// OutcomeFailed means a request failed and the error was reported to history.
	OutcomeFailed
	// OutcomeUnknownStatus means the poll endpoint returned an unrecognised status.
	OutcomeUnknownStatus
	// OutcomeAborted means the coordinator was closed or its context ended.
	OutcomeAborted
)

var outcomeNames = map[Outcome]string{
	OutcomeNone:                "none",
	OutcomeRendered:            "rendered",
	OutcomeRejected:            "rejected",
	OutcomeCancelled:           "cancelled",
	OutcomeNotConnected:        "not_connected",
	OutcomeConnectionLost:      "connection_lost",
	OutcomeLoginRequired:       "login_required",
	OutcomeTransactionRequired: "transaction_required",
	OutcomeFailed:              "failed",
	OutcomeUnknownStatus:       "unknown_status",
	OutcomeAborted:             "aborted",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// Recoverable reports whether a recovery flow ran. Whether a pending action
// was saved for replay is up to the host.
func (o Outcome) Recoverable() bool {
	switch o {
	case OutcomeLoginRequired, OutcomeTransactionRequired, OutcomeConnectionLost:
		return true
	}
	return false
}
