package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/pending"
	"pgquery/cli/internal/querytool"
)

type fakeSession struct {
	ids     []string
	initErr error
	pingErr error
	inits   int
}

func (s *fakeSession) GetVersion(context.Context) (string, error) { return "test", s.pingErr }

func (s *fakeSession) InitializeQueryTool(context.Context, backend.Target) (string, error) {
	s.inits++
	if s.initErr != nil {
		return "", s.initErr
	}
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id, nil
}

func newTestView(session Session) (*View, *bytes.Buffer) {
	var buf bytes.Buffer
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	v := New(session, Options{
		Out:       &buf,
		QueryTool: true,
		TransID:   "1001",
		Now:       func() time.Time { return start.Add(250 * time.Millisecond) },
	})
	return v, &buf
}

func TestTrigger_TracksLoadingState(t *testing.T) {
	v, buf := newTestView(&fakeSession{})

	v.Trigger(querytool.EventLoadingShow, querytool.MsgInitializing)
	s := v.Snapshot()
	assert.True(t, s.Loading)
	assert.Equal(t, querytool.MsgInitializing, s.LoadingMessage)

	v.Trigger(querytool.EventLoadingMessage, querytool.MsgWaiting)
	assert.Equal(t, querytool.MsgWaiting, v.Snapshot().LoadingMessage)

	v.Trigger(querytool.EventLoadingHide)
	s = v.Snapshot()
	assert.False(t, s.Loading)
	assert.Empty(t, s.LoadingMessage)

	v.Trigger("unrelated:event", "x")
	assert.Empty(t, buf.String(), "non-interactive view never animates")
}

func TestTrigger_StatusLines(t *testing.T) {
	var out, status bytes.Buffer
	v := New(&fakeSession{}, Options{Out: &out, Status: &status})

	v.Trigger(querytool.EventLoadingShow, querytool.MsgInitializing)
	v.Trigger(querytool.EventLoadingMessage, querytool.MsgWaiting)
	v.Trigger(querytool.EventLoadingHide)

	assert.Contains(t, status.String(), querytool.MsgInitializing)
	assert.Contains(t, status.String(), querytool.MsgWaiting)
	assert.Empty(t, out.String())
}

func TestUpdateMsgHistory(t *testing.T) {
	v, buf := newTestView(&fakeSession{})
	v.BeginQuery("select 1", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	v.UpdateMsgHistory(true, "NOTICE: partial", false)
	v.UpdateMsgHistory(false, "relation \"nope\" does not exist", true)

	s := v.Snapshot()
	require.Len(t, s.History, 2)
	assert.True(t, s.History[0].Status)
	assert.False(t, s.History[1].Status)
	assert.Contains(t, buf.String(), "NOTICE: partial")
	assert.Contains(t, buf.String(), "does not exist")

	require.Len(t, s.Queries, 1)
	assert.False(t, s.Queries[0].Status)
	assert.Equal(t, 250*time.Millisecond, s.Queries[0].Duration)
}

func TestRenderAfterPoll(t *testing.T) {
	v, buf := newTestView(&fakeSession{})
	v.BeginQuery("select id, name from t", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	rows, _ := json.Marshal([][]any{{1, "alice"}, {2, nil}})
	v.RenderAfterPoll(backend.PollData{
		Status:  backend.StatusSuccess,
		Result:  rows,
		ColInfo: []backend.ColumnInfo{{Name: "id"}, {Name: "name"}},
	})

	out := buf.String()
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "[null]")
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "250ms")
	assert.NotContains(t, out, "rows affected")

	s := v.Snapshot()
	assert.NotEmpty(t, s.Result)
	require.Len(t, s.Queries, 1)
	assert.True(t, s.Queries[0].Status)

	v.UpdateMsgHistory(false, "next failure", true)
	assert.Empty(t, v.Snapshot().Result, "clearGrid drops the previous result")
}

func TestRenderAfterPoll_BadRows(t *testing.T) {
	v, _ := newTestView(&fakeSession{})
	v.RenderAfterPoll(backend.PollData{Status: backend.StatusSuccess, Result: []byte(`{"x":`)})

	s := v.Snapshot()
	require.Len(t, s.History, 1)
	assert.False(t, s.History[0].Status)
}

func TestResetQueryHistory_DetachesRecord(t *testing.T) {
	v, _ := newTestView(&fakeSession{})
	v.BeginQuery("select 1", time.Now())
	v.ResetQueryHistory()
	v.UpdateMsgHistory(false, "poll failed", true)

	s := v.Snapshot()
	require.Len(t, s.Queries, 1)
	assert.Zero(t, s.Queries[0].Duration)
	assert.Empty(t, s.Queries[0].Message)
}

func TestHighlightError(t *testing.T) {
	v, buf := newTestView(&fakeSession{})
	v.BeginQuery("select 1;\nselec 2", time.Now())

	v.HighlightError("ERROR:  syntax error at or near \"selec\"\nLINE 2: selec 2\n        ^")
	s := v.Snapshot()
	require.NotNil(t, s.Marker)
	assert.Equal(t, Marker{Line: 2, Column: 1}, *s.Marker)
	assert.Contains(t, buf.String(), "at line 2, column 1")

	v.ClearErrorMarker()
	assert.Nil(t, v.Snapshot().Marker)

	v.HighlightError("permission denied")
	assert.Nil(t, v.Snapshot().Marker)
}

func TestButtonsAndPolling(t *testing.T) {
	v, _ := newTestView(&fakeSession{})
	v.DisableToolButtons(true)
	v.DisableCancelButton(false)
	v.DisableFlashButton(true)
	v.InitPollingFlags()
	v.SetIsQueryRunning(true)
	v.SetIsQueryRunning(true)

	s := v.Snapshot()
	assert.True(t, s.ToolDisabled)
	assert.False(t, s.CancelDisabled)
	assert.True(t, s.FlashDisabled)
	assert.True(t, s.Running)
	assert.Equal(t, 2, s.Polls)

	v.SetIsQueryRunning(false)
	assert.False(t, v.Snapshot().Running)
}

func TestInitTransaction_MovesPendingAction(t *testing.T) {
	session := &fakeSession{ids: []string{"2002"}}
	v, _ := newTestView(session)

	v.SavePendingAction(pending.Action{Name: pending.ActionExecute, TransID: "1001", SQL: "select 1"})
	require.NoError(t, v.InitTransaction(context.Background()))

	assert.Equal(t, "2002", v.TransID())
	a, ok := v.TakePending()
	require.True(t, ok)
	assert.Equal(t, "select 1", a.SQL)
	assert.Equal(t, "2002", a.TransID)

	_, ok = v.TakePending()
	assert.False(t, ok, "an action is replayed at most once")
}

func TestInitTransaction_Error(t *testing.T) {
	v, _ := newTestView(&fakeSession{initErr: errors.New("boom")})
	assert.Error(t, v.InitTransaction(context.Background()))
	assert.Equal(t, "1001", v.TransID())
}

func TestHandleConnectionLost(t *testing.T) {
	he := &backend.HTTPError{ReadyState: backend.ReadyStateDone, Status: 503}

	tests := []struct {
		name        string
		session     *fakeSession
		create      bool
		reconnected bool
		transID     string
	}{
		{"server back", &fakeSession{}, false, true, "1001"},
		{"server back with new transaction", &fakeSession{ids: []string{"3003"}}, true, true, "3003"},
		{"server still down", &fakeSession{pingErr: errors.New("refused")}, true, false, "1001"},
		{"transaction init fails", &fakeSession{initErr: errors.New("boom")}, true, false, "1001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, buf := newTestView(tt.session)
			v.HandleConnectionLost(context.Background(), tt.create, he)
			assert.Equal(t, tt.reconnected, v.Reconnected())
			assert.Equal(t, tt.transID, v.TransID())
			assert.Contains(t, buf.String(), "connection was lost")
		})
	}
}

func TestPollFallbackTime(t *testing.T) {
	v := New(&fakeSession{}, Options{})
	assert.Equal(t, time.Second, v.PollFallbackTime())
	v.SetPollFallbackTime(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, v.PollFallbackTime())
}

func TestSpinner_ClearsLine(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf)
	s.interval = time.Millisecond

	s.start("Waiting")
	time.Sleep(10 * time.Millisecond)
	s.setText("Rendering")
	time.Sleep(10 * time.Millisecond)
	s.halt()
	s.halt()

	out := buf.String()
	assert.Contains(t, out, "Waiting")
	assert.Contains(t, out, "Rendering")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\r")))
}
