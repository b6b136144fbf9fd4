// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package editor implements the terminal view of a query tool session.
//
// View is the host the query coordinator reports to: it animates the loading
// indicator on a TTY, prints the message history and result grid, keeps the
// executed-query history and holds actions awaiting replay after a recovery flow.
package editor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/logging"
	"pgquery/cli/internal/pending"
	"pgquery/cli/internal/querytool"
)

// Session is the part of the backend the view uses to recover a transaction.
type Session interface {
	GetVersion(ctx context.Context) (string, error)
	InitializeQueryTool(ctx context.Context, target backend.Target) (string, error)
}

// Message is one entry of the message history.
type Message struct {
	Status bool
	Text   string
	At     time.Time
}

// QueryRecord is one executed statement in the query history.
type QueryRecord struct {
	SQL       string
	StartedAt time.Time
	Duration  time.Duration
	Status    bool
	Message   string
}

// Options configures a View.
type Options struct {
	Out io.Writer
	// Status receives loading messages as plain lines when the view is not interactive.
	Status       io.Writer
	Interactive  bool
	QueryTool    bool
	PollFallback time.Duration
	Target       backend.Target
	TransID      string
	Pending      *pending.Store
	Logger       *pterm.Logger
	Now          func() time.Time
}

// View renders a query tool session to a terminal.
type View struct {
	session Session
	out     io.Writer
	status  io.Writer
	tty     bool
	spin    *spinner
	logger  *pterm.Logger
	now     func() time.Time
	pending *pending.Store
	target  backend.Target

	queryTool bool

	mu       sync.Mutex
	transID  string
	fallback time.Duration

	loading    bool
	loadingMsg string

	sql       string
	startedAt time.Time
	running   bool
	polls     int
	result    string
	marker    *Marker

	toolDisabled   bool
	cancelDisabled bool
	flashDisabled  bool

	history []Message
	queries []QueryRecord
	current int

	reconnected bool
}

var _ querytool.Host = (*View)(nil)

// New creates a view bound to session.
func New(session Session, opts Options) *View {
	v := &View{
		session:   session,
		out:       opts.Out,
		status:    opts.Status,
		tty:       opts.Interactive,
		logger:    opts.Logger,
		now:       opts.Now,
		pending:   opts.Pending,
		target:    opts.Target,
		queryTool: opts.QueryTool,
		transID:   opts.TransID,
		fallback:  opts.PollFallback,
		current:   -1,
	}
	if v.out == nil {
		v.out = io.Discard
	}
	if v.logger == nil {
		v.logger = logging.Nop()
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.pending == nil {
		v.pending = pending.New(pending.DefaultTTL)
	}
	if v.fallback <= 0 {
		v.fallback = time.Second
	}
	v.spin = newSpinner(v.out)
	return v
}

// Trigger handles the loading indicator events.
func (v *View) Trigger(event string, args ...any) {
	text := ""
	if len(args) > 0 {
		text = fmt.Sprint(args[0])
	}

	v.mu.Lock()
	switch event {
	case querytool.EventLoadingShow:
		v.loading, v.loadingMsg = true, text
	case querytool.EventLoadingMessage:
		v.loadingMsg = text
	case querytool.EventLoadingHide:
		v.loading, v.loadingMsg = false, ""
	default:
		v.mu.Unlock()
		v.logger.Trace("ignored event", v.logger.Args("event", event))
		return
	}
	loading, msg := v.loading, v.loadingMsg
	v.mu.Unlock()

	if !v.tty {
		if v.status != nil && loading {
			pterm.Info.WithWriter(v.status).Println(msg)
		}
		return
	}
	switch {
	case !loading:
		v.spin.halt()
	case event == querytool.EventLoadingShow:
		v.spin.start(msg)
	default:
		v.spin.setText(msg)
	}
}

// TransID returns the transaction the editor is bound to.
func (v *View) TransID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transID
}

// SetPollFallbackTime changes the delay used for subsequent polls.
func (v *View) SetPollFallbackTime(d time.Duration) {
	v.mu.Lock()
	v.fallback = d
	v.mu.Unlock()
}

func (v *View) PollFallbackTime() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fallback
}

func (v *View) IsQueryTool() bool { return v.queryTool }

// BeginQuery opens a query history record for sql.
func (v *View) BeginQuery(sql string, startedAt time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sql = sql
	v.startedAt = startedAt
	v.queries = append(v.queries, QueryRecord{SQL: sql, StartedAt: startedAt})
	v.current = len(v.queries) - 1
}

func (v *View) InitPollingFlags() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.polls = 0
	v.running = false
}

func (v *View) SetIsQueryRunning(running bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if running {
		v.polls++
	}
	v.running = running
}

func (v *View) DisableToolButtons(disabled bool) {
	v.mu.Lock()
	v.toolDisabled = disabled
	v.mu.Unlock()
}

func (v *View) DisableCancelButton(disabled bool) {
	v.mu.Lock()
	v.cancelDisabled = disabled
	v.mu.Unlock()
}

func (v *View) DisableFlashButton(disabled bool) {
	v.mu.Lock()
	v.flashDisabled = disabled
	v.mu.Unlock()
}

func (v *View) ClearErrorMarker() {
	v.mu.Lock()
	v.marker = nil
	v.mu.Unlock()
}

// UpdateMsgHistory records and prints msg. A failure also closes the current query record.
func (v *View) UpdateMsgHistory(status bool, msg string, clearGrid bool) {
	v.mu.Lock()
	v.history = append(v.history, Message{Status: status, Text: msg, At: v.now()})
	if clearGrid {
		v.result = ""
	}
	if !status {
		v.closeRecord(false, msg)
	}
	v.mu.Unlock()

	v.print(func(w io.Writer) {
		if status {
			pterm.Info.WithWriter(w).Println(msg)
			return
		}
		pterm.Error.WithWriter(w).Println(msg)
	})
}

// HighlightError marks the error location in the current statement, when the message carries one.
func (v *View) HighlightError(msg string) {
	v.mu.Lock()
	m, ok := ParseMarker(msg, v.sql)
	if !ok {
		v.mu.Unlock()
		return
	}
	v.marker = &m
	excerpt := sourceLine(v.sql, m.Line)
	v.mu.Unlock()

	v.print(func(w io.Writer) {
		fmt.Fprintf(w, "at line %d", m.Line)
		if m.Column > 0 {
			fmt.Fprintf(w, ", column %d", m.Column)
		}
		fmt.Fprintln(w)
		if excerpt == "" {
			return
		}
		fmt.Fprintf(w, "  %s\n", excerpt)
		if m.Column > 0 {
			fmt.Fprintf(w, "  %s^\n", strings.Repeat(" ", m.Column-1))
		}
	})
}

// RenderAfterPoll prints the result grid of a successful execution.
func (v *View) RenderAfterPoll(data backend.PollData) {
	out, err := RenderResult(data)
	if err != nil {
		v.logger.Warn("render failed", v.logger.Args("error", err.Error()))
		v.UpdateMsgHistory(false, err.Error(), true)
		return
	}

	v.mu.Lock()
	elapsed := v.now().Sub(v.startedAt)
	v.result = out
	v.closeRecord(true, "")
	v.mu.Unlock()

	v.print(func(w io.Writer) {
		fmt.Fprintln(w, out)
		pterm.Success.WithWriter(w).Printfln("Query returned successfully in %s.", elapsed.Round(time.Millisecond))
	})
}

// ResetQueryHistory detaches the running statement from its history record.
func (v *View) ResetQueryHistory() {
	v.mu.Lock()
	v.current = -1
	v.mu.Unlock()
}

// SavePendingAction keeps action until it is taken for replay or expires.
func (v *View) SavePendingAction(action pending.Action) {
	v.logger.Debug("pending action saved", v.logger.Args("action", action.Name, "trans_id", action.TransID))
	v.pending.Save(action)
}

// TakePending removes and returns the action saved for the current transaction.
func (v *View) TakePending() (pending.Action, bool) {
	return v.pending.Take(v.TransID())
}

// InitTransaction opens a new server transaction and rebinds the editor and its pending action to it.
func (v *View) InitTransaction(ctx context.Context) error {
	id, err := v.session.InitializeQueryTool(ctx, v.target)
	if err != nil {
		return err
	}

	v.mu.Lock()
	old := v.transID
	v.transID = id
	v.mu.Unlock()

	if old != "" && old != id {
		v.pending.Move(old, id)
	}
	v.logger.Info("transaction initialized", v.logger.Args("trans_id", id))
	return nil
}

// HandleConnectionLost checks that the server answers again and, when asked,
// opens a new transaction. Reconnected reports the result.
func (v *View) HandleConnectionLost(ctx context.Context, createTransaction bool, he *backend.HTTPError) {
	v.print(func(w io.Writer) {
		pterm.Warning.WithWriter(w).Println("The database connection was lost. Reconnecting...")
	})
	if he != nil {
		v.logger.Warn("connection lost", v.logger.Args("status", he.Status, "message", logging.Mask(he.Message())))
	}

	ok := true
	if _, err := v.session.GetVersion(ctx); err != nil {
		v.logger.Error("reconnect failed", v.logger.Args("error", err.Error()))
		ok = false
	}
	if ok && createTransaction {
		if err := v.InitTransaction(ctx); err != nil {
			v.logger.Error("transaction initialization failed", v.logger.Args("error", err.Error()))
			ok = false
		}
	}

	v.mu.Lock()
	v.reconnected = ok
	v.mu.Unlock()
}

// Reconnected reports whether the last connection-lost recovery succeeded.
func (v *View) Reconnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reconnected
}

// Snapshot is a copy of the view state.
type Snapshot struct {
	TransID        string
	Loading        bool
	LoadingMessage string
	Running        bool
	Polls          int
	Result         string
	Marker         *Marker
	ToolDisabled   bool
	CancelDisabled bool
	FlashDisabled  bool
	History        []Message
	Queries        []QueryRecord
}

// Snapshot returns the current view state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := Snapshot{
		TransID:        v.transID,
		Loading:        v.loading,
		LoadingMessage: v.loadingMsg,
		Running:        v.running,
		Polls:          v.polls,
		Result:         v.result,
		ToolDisabled:   v.toolDisabled,
		CancelDisabled: v.cancelDisabled,
		FlashDisabled:  v.flashDisabled,
		History:        append([]Message(nil), v.history...),
		Queries:        append([]QueryRecord(nil), v.queries...),
	}
	if v.marker != nil {
		m := *v.marker
		s.Marker = &m
	}
	return s
}

// closeRecord finishes the current query record. Callers hold v.mu.
func (v *View) closeRecord(status bool, msg string) {
	if v.current < 0 || v.current >= len(v.queries) {
		return
	}
	r := &v.queries[v.current]
	r.Duration = v.now().Sub(r.StartedAt)
	r.Status = status
	r.Message = msg
	v.current = -1
}

// print writes output without tearing a running spinner line.
func (v *View) print(f func(w io.Writer)) {
	v.mu.Lock()
	resume := v.tty && v.loading
	msg := v.loadingMsg
	v.mu.Unlock()

	if resume {
		v.spin.halt()
	}
	f(v.out)
	if resume {
		v.spin.start(msg)
	}
}

func sourceLine(sql string, n int) string {
	lines := strings.Split(sql, "\n")
	if n < 1 || n > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[n-1], "\r")
}
