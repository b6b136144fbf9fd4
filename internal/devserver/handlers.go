// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package devserver

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/logging"
)

const (
	sessionUser = "user"
	sessionCSRF = "csrf_token"

	msgTransactionNotFound = "Transaction ID not found in the session."
	msgLoginRequired       = "Unauthorized request."
	msgNoQuery             = "No query is running for this transaction."
	msgAlreadyRunning      = "Another query is already running in this transaction."
	msgEmptyQuery          = "No SQL query was provided."
	msgStatementTimeout    = "ERROR:  canceling statement due to statement timeout"
)

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html><head><title>pgquery dev server</title></head>
<body>
<form method="post" action="/authenticate/login">
<input type="hidden" name="csrf_token" value="{{.}}">
<input type="email" name="email">
<input type="password" name="password">
<button type="submit">Login</button>
</form>
</body></html>
`))

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, info string) {
	writeJSON(w, status, backend.ErrorBody{Success: 0, ErrorMsg: msg, Info: info})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessions.Get(r, SessionName)
	token := uuid.NewString()
	sess.Values[sessionCSRF] = token
	if err := sess.Save(r, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginPage.Execute(w, token)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessions.Get(r, SessionName)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	want, _ := sess.Values[sessionCSRF].(string)
	if want == "" || !equal(want, r.PostForm.Get("csrf_token")) {
		writeError(w, http.StatusForbidden, "The CSRF token is missing or invalid.", "")
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.PostForm.Get("email")))
	if !equal(email, strings.ToLower(s.email)) || !equal(r.PostForm.Get("password"), s.password) {
		s.logger.Warn("login rejected", s.logger.Args("email", email))
		writeError(w, http.StatusUnauthorized, "Incorrect username or password.", "")
		return
	}

	sess.Values[sessionUser] = email
	delete(sess.Values, sessionCSRF)
	if err := sess.Save(r, w); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.logger.Info("user logged in", s.logger.Args("email", email))
	writeJSON(w, http.StatusOK, map[string]int{"success": 1})
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type userKey struct{}

// requireLogin rejects requests without a logged-in session with the login-required marker.
func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := s.sessions.Get(r, SessionName)
		user, _ := sess.Values[sessionUser].(string)
		if user == "" {
			writeError(w, http.StatusUnauthorized, msgLoginRequired, backend.InfoLoginRequired)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userFrom(r *http.Request) string {
	u, _ := r.Context().Value(userKey{}).(string)
	return u
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var target backend.Target
	var err error
	if target.ServerGroupID, err = strconv.Atoi(chi.URLParam(r, "sgid")); err == nil {
		if target.ServerID, err = strconv.Atoi(chi.URLParam(r, "sid")); err == nil {
			target.DatabaseID, err = strconv.Atoi(chi.URLParam(r, "did"))
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid object id: "+err.Error(), "")
		return
	}

	t := &transaction{id: uuid.NewString(), owner: userFrom(r), target: target}
	s.mu.Lock()
	s.txns[t.id] = t
	s.mu.Unlock()

	s.logger.Debug("transaction opened", s.logger.Args("trans_id", t.id, "database_id", target.DatabaseID))
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"gridTransId": t.id}})
}

// lookup finds the caller's transaction or writes the transaction-required error.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*transaction, bool) {
	id := chi.URLParam(r, "trans_id")
	s.mu.Lock()
	t, ok := s.txns[id]
	s.mu.Unlock()
	if !ok || t.owner != userFrom(r) {
		writeError(w, http.StatusNotFound, msgTransactionNotFound, backend.InfoTransactionRequired)
		return nil, false
	}
	return t, true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req backend.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeJSON(w, http.StatusOK, backend.StartResponse{Data: backend.StartData{Status: false, Result: msgEmptyQuery}})
		return
	}

	if p, ok := s.runner.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("database connection lost", s.logger.Args("error", logging.Mask(err.Error())))
			writeError(w, http.StatusServiceUnavailable, err.Error(), backend.InfoConnectionLost)
			return
		}
	}

	if !t.start(s.runner, req.SQL, req.ExplainPlan, s.queryTimeout) {
		writeJSON(w, http.StatusOK, backend.StartResponse{Data: backend.StartData{Status: false, Result: msgAlreadyRunning}})
		return
	}

	s.logger.Debug("query started", s.logger.Args("trans_id", t.id, "sql", logging.Mask(req.SQL)))
	writeJSON(w, http.StatusOK, backend.StartResponse{Data: backend.StartData{
		Status:              true,
		CanEdit:             false,
		CanFilter:           true,
		InfoNotifierTimeout: 5,
	}})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}

	e, finished := t.state()
	switch {
	case e == nil:
		writeError(w, http.StatusInternalServerError, msgNoQuery, "")
		return
	case !finished:
		writeJSON(w, http.StatusOK, backend.PollResponse{Data: backend.PollData{Status: backend.StatusBusy}})
		return
	}

	switch {
	case e.cancelled:
		writeJSON(w, http.StatusOK, backend.PollResponse{Data: backend.PollData{Status: backend.StatusCancel}})
	case e.err != nil && isConnError(e.err):
		msg, _ := json.Marshal(e.err.Error())
		writeJSON(w, http.StatusOK, backend.PollResponse{Data: backend.PollData{Status: backend.StatusNotConnected, Result: msg}})
	case errors.Is(e.err, context.DeadlineExceeded):
		writeError(w, http.StatusInternalServerError, msgStatementTimeout, "")
	case e.err != nil:
		writeError(w, http.StatusInternalServerError, formatDBError(e.stmt, e.err), "")
	default:
		s.writeSuccess(w, e)
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, e *execution) {
	rows, err := json.Marshal(e.result.Rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	cols := make([]backend.ColumnInfo, len(e.result.Columns))
	for i, c := range e.result.Columns {
		cols[i] = backend.ColumnInfo{Name: c.Name, TypeName: c.TypeName}
	}
	writeJSON(w, http.StatusOK, backend.PollResponse{Data: backend.PollData{
		Status:       backend.StatusSuccess,
		Result:       rows,
		ColInfo:      cols,
		RowsAffected: e.result.RowsAffected,
	}})
}

// isConnError reports whether err means the database connection is gone.
// Timeouts and cancellations are statement failures, not lost connections.
func isConnError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && !netErr.Timeout()
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !t.cancel() {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": false, "result": msgNoQuery}})
		return
	}
	s.logger.Debug("query cancelled", s.logger.Args("trans_id", t.id))
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": true, "result": "Success"}})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}
	t.cancel()
	s.mu.Lock()
	delete(s.txns, t.id)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": true}})
}
