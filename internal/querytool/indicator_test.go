package querytool

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"pgquery/cli/internal/backend"
)

func TestLoadingScreen_EmitsEvents(t *testing.T) {
	host := newFakeHost()
	ls := NewLoadingScreen(host)

	ls.Show("Initializing query execution...")
	ls.SetMessage("Waiting for the query execution to complete...")
	ls.Hide()

	assert.Equal(t, []string{
		"pgquery:loading-icon:show Initializing query execution...",
		"pgquery:loading-icon:message Waiting for the query execution to complete...",
		"pgquery:loading-icon:hide",
	}, host.events)
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name        string
		err         *backend.HTTPError
		login       bool
		transaction bool
		lost        bool
	}{
		{"nil", nil, false, false, false},
		{"login", httpErr(http.StatusUnauthorized, backend.InfoLoginRequired, ""), true, false, false},
		{"401 without marker", httpErr(http.StatusUnauthorized, "", ""), false, false, false},
		{"transaction", httpErr(http.StatusNotFound, backend.InfoTransactionRequired, ""), false, true, false},
		{"404 with wrong marker", httpErr(http.StatusNotFound, backend.InfoLoginRequired, ""), false, false, false},
		{"connection lost", httpErr(http.StatusServiceUnavailable, backend.InfoConnectionLost, ""), false, false, true},
		{"no body", &backend.HTTPError{ReadyState: backend.ReadyStateDone, Status: http.StatusServiceUnavailable}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.login, IsLoginRequired(tt.err))
			assert.Equal(t, tt.transaction, IsNewTransactionRequired(tt.err))
			assert.Equal(t, tt.lost, IsConnectionLost(tt.err))
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "rendered", OutcomeRendered.String())
	assert.Equal(t, "connection_lost", OutcomeConnectionLost.String())
	assert.Equal(t, "outcome(99)", Outcome(99).String())
	assert.False(t, OutcomeFailed.Recoverable())
}
