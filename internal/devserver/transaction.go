// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package devserver

import (
	"context"
	"sync"
	"time"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/sqlexec"
)

// transaction is one query tool session opened by initialize.
type transaction struct {
	id     string
	owner  string
	target backend.Target

	mu   sync.Mutex
	exec *execution
}

// execution is the statement currently running, or finished but not yet polled.
type execution struct {
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
	stmt    string

	result    sqlexec.Result
	err       error
	cancelled bool
}

// start runs stmt in the background. It reports false when a statement is already active.
func (t *transaction) start(runner Runner, stmt string, explain bool, timeout time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exec != nil {
		return false
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	e := &execution{cancel: cancel, done: make(chan struct{}), started: time.Now(), stmt: stmt}
	t.exec = e

	go func() {
		defer close(e.done)
		defer cancel()
		res, err := runner.Run(ctx, stmt, explain)
		t.mu.Lock()
		e.result, e.err = res, err
		t.mu.Unlock()
	}()
	return true
}

// state reports the active execution and whether it finished.
// A finished execution is detached so the next start is accepted.
func (t *transaction) state() (e *execution, finished bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e = t.exec
	if e == nil {
		return nil, false
	}
	select {
	case <-e.done:
		t.exec = nil
		return e, true
	default:
		return e, false
	}
}

// cancel stops the running statement. It reports whether one was running.
func (t *transaction) cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exec == nil {
		return false
	}
	select {
	case <-t.exec.done:
		return false
	default:
	}
	t.exec.cancelled = true
	t.exec.cancel()
	return true
}
