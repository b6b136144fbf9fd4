// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package auth runs the pgAdmin login flow for the CLI.
//
// The server signals an expired session with 401 and the
// PGADMIN_LOGIN_REQUIRED marker. The Service detects that, re-authenticates
// the cookie session with the stored password (prompting when there is none)
// and keeps the login state in the OS keychain.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pterm/pterm"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/keychain"
	"pgquery/cli/internal/logging"
)

// ErrNoEmail is returned when no pgAdmin account is configured.
var ErrNoEmail = errors.New("no pgAdmin email configured (pgquery config set email <address>)")

// Authenticator is the backend surface the login flow needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) error
}

// PromptFunc asks the user for a secret. A nil PromptFunc disables prompting.
type PromptFunc func(label string) (string, error)

// Service centralizes login-related operations against the backend and the keychain.
type Service struct {
	be      Authenticator
	secrets Secrets
	server  string
	email   string
	prompt  PromptFunc
	logger  *pterm.Logger
	now     func() time.Time
}

// NewService constructs a Service for email on server.
func NewService(be Authenticator, secrets Secrets, server, email string, prompt PromptFunc, logger *pterm.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		be:      be,
		secrets: secrets,
		server:  server,
		email:   email,
		prompt:  prompt,
		logger:  logger,
		now:     time.Now,
	}
}

// IsLoginRequired reports whether err is the server's expired-session response.
func (s *Service) IsLoginRequired(err *backend.HTTPError) bool {
	return err != nil && err.Status == http.StatusUnauthorized && err.Info() == backend.InfoLoginRequired
}

// Login re-authenticates the session with the stored password. When none is
// stored, or the stored one is rejected, the user is prompted once.
func (s *Service) Login(ctx context.Context) error {
	if s.email == "" {
		return ErrNoEmail
	}

	pw, err := s.secrets.LoadPassword(s.server, s.email)
	switch {
	case err == nil:
		lerr := s.LoginWithPassword(ctx, s.email, pw, false)
		if lerr == nil || !isRejected(lerr) || s.prompt == nil {
			return lerr
		}
		s.logger.Warn("stored password rejected", s.logger.Args("email", s.email))
	case errors.Is(err, keychain.ErrNotFound):
		if s.prompt == nil {
			return fmt.Errorf("no stored password for %s: run 'pgquery login'", s.email)
		}
	default:
		s.logger.Debug("keychain lookup failed", s.logger.Args("error", err.Error()))
		if s.prompt == nil {
			return err
		}
	}

	pw, err = s.prompt(fmt.Sprintf("pgAdmin password for %s: ", s.email))
	if err != nil {
		return err
	}
	return s.LoginWithPassword(ctx, s.email, pw, true)
}

// LoginWithPassword authenticates and records the login state.
// The password is saved to the keychain when remember is set.
func (s *Service) LoginWithPassword(ctx context.Context, email, password string, remember bool) error {
	s.logger.Debug("logging in", s.logger.Args("server", s.server, "email", email))
	if err := s.be.Login(ctx, email, password); err != nil {
		return err
	}
	if remember {
		if err := s.secrets.SavePassword(s.server, email, password); err != nil {
			s.logger.Warn("could not store password in keychain", s.logger.Args("error", logging.Mask(err.Error())))
		}
	}
	s.email = email
	return saveState(s.secrets, State{LoggedIn: true, Email: email, Server: s.server, LoggedInAt: s.now()})
}

// WhoAmI returns the recorded login state when it belongs to the configured server.
func (s *Service) WhoAmI() (State, bool, error) {
	st, err := loadState(s.secrets)
	if err != nil {
		return st, false, err
	}
	if !st.LoggedIn || st.Server != s.server {
		return st, false, nil
	}
	return st, true, nil
}

// Logout forgets the stored password and login state.
func (s *Service) Logout() error {
	st, err := loadState(s.secrets)
	if err != nil {
		return err
	}
	email := s.email
	if email == "" {
		email = st.Email
	}
	if email != "" {
		if err := s.secrets.DeletePassword(s.server, email); err != nil {
			return err
		}
	}
	return s.secrets.ClearAuthState()
}

func isRejected(err error) bool {
	he, ok := backend.AsHTTPError(err)
	return ok && (he.Status == http.StatusUnauthorized || he.Status == http.StatusForbidden)
}
