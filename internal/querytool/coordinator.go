// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package querytool drives the execute/poll lifecycle of a SQL editor session.
//
// A Coordinator submits one statement to the backend, then polls on a
// restartable timer until the server reports a terminal status. Every visible
// effect (loading indicator, toolbar state, message history, result rendering)
// goes through the injected Host and Indicator, so the same coordinator serves
// the terminal editor and the tests.
package querytool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/errors"
)

// User-visible messages.
const (
	MsgInitializing   = "Initializing query execution..."
	MsgWaiting        = "Waiting for the query execution to complete..."
	MsgRendering      = "Loading data from the database server and rendering..."
	MsgCancelled      = "Execution Cancelled!"
	MsgNotConnected   = "Not connected to the server or the connection to the server has been closed."
	msgUnknownStatus  = "Unknown query status: %s"
	msgLoginRequired  = "login required"
	msgNewTransaction = "new transaction required"
)

// ErrExecutionInProgress is returned by Execute while a previous execution has not finished.
var ErrExecutionInProgress = errors.New(errors.ExecutionRejected, "an execution is already in progress")

// Coordinator owns the execute/poll state machine for one editor.
type Coordinator struct {
	host      Host
	users     UserManagement
	transport Transport
	indicator Indicator
	sched     Scheduler
	logger    *pterm.Logger
	now       func() time.Time

	mu    sync.Mutex
	state State
	timer Timer
	cur   *execution

	// async tracks connection-lost handlers still running.
	async sync.WaitGroup
}

// execution is one Execute call from submission to its terminal outcome.
type execution struct {
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	sql     string
	explain bool

	finished bool
	outcome  Outcome
	err      error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScheduler replaces the runtime timer used between polls.
func WithScheduler(s Scheduler) Option {
	return func(c *Coordinator) { c.sched = s }
}

// WithIndicator replaces the default LoadingScreen bound to the host.
func WithIndicator(i Indicator) Option {
	return func(c *Coordinator) { c.indicator = i }
}

// WithLogger sets the structured logger for lifecycle tracing.
func WithLogger(l *pterm.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock overrides the time source used for start timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator reporting to host.
func New(host Host, users UserManagement, transport Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		host:      host,
		users:     users,
		transport: transport,
		sched:     clockScheduler{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.indicator == nil {
		c.indicator = NewLoadingScreen(host)
	}
	if c.logger == nil {
		c.logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}
	return c
}

// Execute submits sql to the backend and starts polling for its result.
// Whitespace-only input is ignored. The outcome is collected with Wait.
func (c *Coordinator) Execute(ctx context.Context, sql string, explainPlan bool) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}

	c.mu.Lock()
	if c.cur != nil && !c.cur.finished {
		c.mu.Unlock()
		c.logger.Warn("execution refused, previous query still running")
		return ErrExecutionInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &execution{
		parent:  ctx,
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		sql:     sql,
		explain: explainPlan,
	}
	startedAt := c.now()
	c.cur = run
	c.state = State{Query: sql, ExplainPlan: explainPlan, StartedAt: startedAt}
	c.mu.Unlock()

	c.initializeExecution(sql, startedAt)

	transID := c.host.TransID()
	c.logger.Debug("starting query", c.logger.Args("trans_id", transID, "explain_plan", explainPlan))

	resp, err := c.transport.StartQuery(runCtx, transID, backend.StartRequest{SQL: sql, ExplainPlan: explainPlan})
	if err != nil {
		if runCtx.Err() != nil {
			c.finish(run, OutcomeAborted, runCtx.Err())
			return nil
		}
		c.handleStartError(run, err)
		return nil
	}
	if c.isFinished(run) {
		return nil
	}

	c.host.ClearErrorMarker()

	if !resp.Data.Status {
		msg := resp.Data.Result
		c.indicator.Hide()
		c.enableButtons()
		c.host.UpdateMsgHistory(false, msg, true)
		c.host.HighlightError(msg)
		c.finish(run, OutcomeRejected, errors.New(errors.ExecutionRejected, msg))
		return nil
	}

	c.indicator.SetMessage(MsgWaiting)

	c.mu.Lock()
	c.state.CanEdit = resp.Data.CanEdit
	c.state.CanFilter = resp.Data.CanFilter
	c.state.InfoNotifierTimeout = resp.Data.InfoNotifierTimeout
	c.mu.Unlock()

	c.schedulePoll(run)
	return nil
}

// Wait blocks until the current execution reaches a terminal outcome or ctx ends.
// It also waits for a connection-lost handler started by that execution.
func (c *Coordinator) Wait(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	run := c.cur
	c.mu.Unlock()
	if run == nil {
		return OutcomeNone, nil
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return OutcomeNone, ctx.Err()
	}
	c.async.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	return run.outcome, run.err
}

// Close stops the pending poll and cancels the in-flight request.
func (c *Coordinator) Close() {
	c.mu.Lock()
	run := c.cur
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if run == nil {
		return
	}
	run.cancel()
	if c.finish(run, OutcomeAborted, context.Canceled) {
		c.indicator.Hide()
	}
}

// State returns a snapshot of the coordinator state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) initializeExecution(sql string, startedAt time.Time) {
	c.indicator.Show(MsgInitializing)
	c.host.DisableFlashButton(true)
	c.host.BeginQuery(sql, startedAt)
	c.host.InitPollingFlags()
	c.disableButtons()
}

func (c *Coordinator) disableButtons() {
	c.host.DisableToolButtons(true)
	c.host.DisableCancelButton(false)
}

func (c *Coordinator) enableButtons() {
	c.host.DisableToolButtons(false)
	c.host.DisableCancelButton(true)
}

// enableIfQueryTool re-enables the toolbar only when the editor owns it.
func (c *Coordinator) enableIfQueryTool() {
	if c.host.IsQueryTool() {
		c.enableButtons()
	}
}

// schedulePoll arms the single poll timer. The delay is read from the host every time.
func (c *Coordinator) schedulePoll(run *execution) {
	delay := c.host.PollFallbackTime()

	c.mu.Lock()
	defer c.mu.Unlock()
	if run.finished || c.cur != run {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.sched.AfterFunc(delay, func() { c.poll(run) })
}

func (c *Coordinator) poll(run *execution) {
	c.mu.Lock()
	if run.finished || c.cur != run {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	ctx := run.ctx
	c.mu.Unlock()

	resp, err := c.transport.Poll(ctx, c.host.TransID())
	if err != nil {
		if ctx.Err() != nil {
			c.finish(run, OutcomeAborted, ctx.Err())
			return
		}
		c.handlePollError(run, err)
		return
	}
	if c.isFinished(run) {
		return
	}

	data := resp.Data
	c.logger.Trace("poll", c.logger.Args("status", string(data.Status)))

	switch data.Status {
	case backend.StatusSuccess:
		c.indicator.SetMessage(MsgRendering)
		c.mu.Lock()
		c.state.RowsAffected = data.RowsAffected
		c.state.Running = false
		c.mu.Unlock()
		c.host.RenderAfterPoll(data)
		c.indicator.Hide()
		c.enableButtons()
		c.finish(run, OutcomeRendered, nil)

	case backend.StatusBusy:
		c.mu.Lock()
		c.state.Running = true
		c.mu.Unlock()
		c.host.SetIsQueryRunning(true)
		c.schedulePoll(run)
		if msg := busyMessage(data); msg != "" {
			c.host.UpdateMsgHistory(true, msg, false)
		}

	case backend.StatusNotConnected:
		msg := data.Message()
		c.indicator.Hide()
		c.enableIfQueryTool()
		c.host.UpdateMsgHistory(false, msg, true)
		c.finish(run, OutcomeNotConnected, errors.New(errors.ServerStatus, msg))

	case backend.StatusCancel:
		c.indicator.Hide()
		c.enableIfQueryTool()
		c.host.UpdateMsgHistory(false, MsgCancelled, true)
		c.finish(run, OutcomeCancelled, errors.New(errors.ServerStatus, MsgCancelled))

	default:
		msg := fmt.Sprintf(msgUnknownStatus, data.Status)
		c.logger.Warn("unknown poll status", c.logger.Args("status", string(data.Status)))
		c.indicator.Hide()
		c.enableIfQueryTool()
		c.host.UpdateMsgHistory(false, msg, true)
		c.finish(run, OutcomeUnknownStatus, errors.New(errors.ServerStatus, msg))
	}
}

// busyMessage is the partial output reported while the query runs.
func busyMessage(d backend.PollData) string {
	if msg := d.Message(); msg != "" {
		return msg
	}
	return d.AdditionalMessages
}

func (c *Coordinator) isFinished(run *execution) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return run.finished
}

// finish records the terminal outcome once. It reports whether this call did it.
func (c *Coordinator) finish(run *execution, outcome Outcome, err error) bool {
	c.mu.Lock()
	if run.finished {
		c.mu.Unlock()
		return false
	}
	run.finished = true
	run.outcome = outcome
	run.err = err
	if c.cur == run {
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.state.Running = false
	}
	c.mu.Unlock()

	c.host.SetIsQueryRunning(false)
	c.logger.Debug("execution finished", c.logger.Args("outcome", outcome.String()))
	run.cancel()
	close(run.done)
	return true
}
