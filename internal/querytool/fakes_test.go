package querytool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/pending"
)

type historyEntry struct {
	Status    bool
	Msg       string
	ClearGrid bool
}

// fakeHost records every call in order.
type fakeHost struct {
	mu sync.Mutex

	transID   string
	fallback  time.Duration
	queryTool bool

	calls     []string
	events    []string
	history   []historyEntry
	highlight []string
	rendered  []backend.PollData
	saved     []pending.Action
	running   []bool

	toolDisabled   bool
	cancelDisabled bool

	initTxErr    error
	lostRelease  chan struct{}
	lostHandled  int
	initTxCalled int
}

func newFakeHost() *fakeHost {
	return &fakeHost{transID: "42", fallback: time.Second, queryTool: true}
}

func (h *fakeHost) record(call string) {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
}

func (h *fakeHost) Trigger(event string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(args) > 0 {
		h.events = append(h.events, fmt.Sprintf("%s %v", event, args[0]))
		return
	}
	h.events = append(h.events, event)
}

func (h *fakeHost) TransID() string { return h.transID }
func (h *fakeHost) PollFallbackTime() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fallback
}
func (h *fakeHost) IsQueryTool() bool { return h.queryTool }

func (h *fakeHost) BeginQuery(sql string, _ time.Time) { h.record("begin " + sql) }
func (h *fakeHost) InitPollingFlags()                  { h.record("init_polling_flags") }

func (h *fakeHost) SetIsQueryRunning(running bool) {
	h.mu.Lock()
	h.running = append(h.running, running)
	h.mu.Unlock()
}

func (h *fakeHost) DisableToolButtons(disabled bool) {
	h.mu.Lock()
	h.toolDisabled = disabled
	h.calls = append(h.calls, fmt.Sprintf("tool_buttons %t", disabled))
	h.mu.Unlock()
}

func (h *fakeHost) DisableCancelButton(disabled bool) {
	h.mu.Lock()
	h.cancelDisabled = disabled
	h.mu.Unlock()
}

func (h *fakeHost) DisableFlashButton(disabled bool) {
	h.record(fmt.Sprintf("flash_button %t", disabled))
}
func (h *fakeHost) ClearErrorMarker()  { h.record("clear_error_marker") }
func (h *fakeHost) ResetQueryHistory() { h.record("reset_query_history") }

func (h *fakeHost) UpdateMsgHistory(status bool, msg string, clearGrid bool) {
	h.mu.Lock()
	h.history = append(h.history, historyEntry{status, msg, clearGrid})
	h.mu.Unlock()
}

func (h *fakeHost) HighlightError(msg string) {
	h.mu.Lock()
	h.highlight = append(h.highlight, msg)
	h.mu.Unlock()
}

func (h *fakeHost) RenderAfterPoll(data backend.PollData) {
	h.mu.Lock()
	h.rendered = append(h.rendered, data)
	h.mu.Unlock()
}

func (h *fakeHost) SavePendingAction(a pending.Action) {
	h.mu.Lock()
	h.saved = append(h.saved, a)
	h.mu.Unlock()
}

func (h *fakeHost) InitTransaction(context.Context) error {
	h.mu.Lock()
	h.initTxCalled++
	h.mu.Unlock()
	return h.initTxErr
}

func (h *fakeHost) HandleConnectionLost(_ context.Context, _ bool, _ *backend.HTTPError) {
	if h.lostRelease != nil {
		<-h.lostRelease
	}
	h.mu.Lock()
	h.lostHandled++
	h.mu.Unlock()
}

func (h *fakeHost) lastEvent() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return ""
	}
	return h.events[len(h.events)-1]
}

// fakeUsers counts login flows.
type fakeUsers struct {
	mu     sync.Mutex
	logins int
}

func (u *fakeUsers) IsLoginRequired(he *backend.HTTPError) bool { return IsLoginRequired(he) }

func (u *fakeUsers) Login(context.Context) error {
	u.mu.Lock()
	u.logins++
	u.mu.Unlock()
	return nil
}

type pollResult struct {
	resp *backend.PollResponse
	err  error
}

// fakeTransport replays scripted responses.
type fakeTransport struct {
	mu sync.Mutex

	startResp *backend.StartResponse
	startErr  error
	polls     []pollResult

	starts    []backend.StartRequest
	pollCalls int
}

func (t *fakeTransport) StartQuery(_ context.Context, _ string, req backend.StartRequest) (*backend.StartResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts = append(t.starts, req)
	return t.startResp, t.startErr
}

func (t *fakeTransport) Poll(context.Context, string) (*backend.PollResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pollCalls++
	if len(t.polls) == 0 {
		return nil, fmt.Errorf("no scripted poll response")
	}
	next := t.polls[0]
	t.polls = t.polls[1:]
	return next.resp, next.err
}

func (t *fakeTransport) polled() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pollCalls
}

// manualScheduler queues callbacks until the test fires them.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
	delays  []time.Duration
}

type manualTimer struct {
	s       *manualScheduler
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, f: f}
	s.pending = append(s.pending, t)
	s.delays = append(s.delays, d)
	return t
}

// active returns the number of armed timers.
func (s *manualScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fire runs the oldest armed timer on the calling goroutine. It reports false when none is armed.
func (s *manualScheduler) fire() bool {
	s.mu.Lock()
	var next *manualTimer
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()
	if next == nil {
		return false
	}
	next.f()
	return true
}

func busy(msg string) pollResult {
	r := &backend.PollResponse{Data: backend.PollData{Status: backend.StatusBusy}}
	if msg != "" {
		r.Data.Result = []byte(fmt.Sprintf("%q", msg))
	}
	return pollResult{resp: r}
}

func status(s backend.PollStatus, result string) pollResult {
	r := &backend.PollResponse{Data: backend.PollData{Status: s}}
	if result != "" {
		r.Data.Result = []byte(result)
	}
	return pollResult{resp: r}
}

func httpErr(code int, info, errormsg string) *backend.HTTPError {
	return &backend.HTTPError{
		ReadyState: backend.ReadyStateDone,
		Status:     code,
		ErrorMsg:   "generic",
		Response:   &backend.ErrorBody{ErrorMsg: errormsg, Info: info},
	}
}
