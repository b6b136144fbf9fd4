// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package devserver is a development backend speaking the query tool HTTP
// contract: cookie-session login with a CSRF token, transaction
// initialization, asynchronous query start, polling and cancellation.
// Statements run through a Runner, normally a sqlexec.Executor.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"pgquery/cli/internal/logging"
	"pgquery/cli/internal/sqlexec"
)

// SessionName is the cookie the session is stored in.
const SessionName = "pga4_session"

// Version is reported by the ping endpoint.
const Version = "pgquery-devserver/1.0"

// Runner executes one statement.
type Runner interface {
	Run(ctx context.Context, stmt string, explain bool) (sqlexec.Result, error)
}

// Pinger is implemented by runners that can check their database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures a Server.
type Config struct {
	Email    string
	Password string
	// SessionSecret signs the session cookie. Empty generates a random one.
	SessionSecret string
	Runner        Runner
	Logger        *pterm.Logger
	// QueryTimeout bounds each statement. Zero means no limit.
	QueryTimeout time.Duration
	// SecureCookies marks the session cookie Secure. Leave it off when serving plain HTTP,
	// or clients will never send the cookie back.
	SecureCookies bool
}

// Server serves the query tool endpoints.
type Server struct {
	email        string
	password     string
	runner       Runner
	logger       *pterm.Logger
	queryTimeout time.Duration
	sessions     *sessions.CookieStore
	router       chi.Router

	mu   sync.Mutex
	txns map[string]*transaction
}

// New builds a server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("devserver: runner is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, errors.New("devserver: email and password are required")
	}
	secret := cfg.SessionSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(86400)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Secure = cfg.SecureCookies

	s := &Server{
		email:        cfg.Email,
		password:     cfg.Password,
		runner:       cfg.Runner,
		logger:       logger,
		queryTimeout: cfg.QueryTimeout,
		sessions:     store,
		txns:         make(map[string]*transaction),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.logRequests,
	)

	r.Get("/misc/ping", s.handlePing)
	r.Get("/login", s.handleLoginPage)
	r.Post("/authenticate/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireLogin)
		r.Post("/datagrid/initialize/query_tool/{sgid}/{sid}/{did}", s.handleInitialize)
		r.Post("/sqleditor/query_tool/start/{trans_id}", s.handleStart)
		r.Get("/sqleditor/poll/{trans_id}", s.handlePoll)
		r.Post("/datagrid/cancel/{trans_id}", s.handleCancel)
		r.Delete("/datagrid/close/{trans_id}", s.handleClose)
	})
	return r
}

// logRequests logs one line per request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", s.logger.Args(
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		))
	})
}

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("dev server listening", s.logger.Args("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Debug("shutting down dev server")
		s.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Close cancels every running statement.
func (s *Server) Close() {
	s.mu.Lock()
	txns := make([]*transaction, 0, len(s.txns))
	for _, t := range s.txns {
		txns = append(txns, t)
	}
	s.mu.Unlock()

	for _, t := range txns {
		t.cancel()
	}
}
