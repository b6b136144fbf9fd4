package cmd

import (
	"context"
	"fmt"

	"pgquery/cli/internal/auth"
	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/config"
	"pgquery/cli/internal/keychain"
	"pgquery/cli/internal/querytool"
	"pgquery/cli/internal/terminal"
)

// clientSession bundles what every server-facing command needs.
type clientSession struct {
	cfg    *config.Config
	client *backend.HTTP
	auth   *auth.Service
}

func newClientSession() (*clientSession, error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, err
	}
	client, err := backend.New(cfg.Server, backend.DefaultEndpoints(), cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	km, err := keychain.GetManager()
	if err != nil {
		return nil, fmt.Errorf("failed to open keychain: %w", err)
	}

	var prompt auth.PromptFunc
	if terminal.IsInteractive() {
		prompt = terminal.ReadPassword
	}
	svc := auth.NewService(client, km, cfg.Server, cfg.Email, prompt, logger)
	return &clientSession{cfg: cfg, client: client, auth: svc}, nil
}

// withLogin runs f and, when the server reports an expired session, logs in and runs it once more.
func (s *clientSession) withLogin(ctx context.Context, f func() error) error {
	err := f()
	he, ok := backend.AsHTTPError(err)
	if !ok || !querytool.IsLoginRequired(he) {
		return err
	}
	logger.Debug("session expired, logging in")
	if lerr := s.auth.Login(ctx); lerr != nil {
		return fmt.Errorf("login failed: %w", lerr)
	}
	return f()
}

// initTransaction opens a query tool transaction for the configured target.
func (s *clientSession) initTransaction(ctx context.Context) (string, error) {
	var id string
	err := s.withLogin(ctx, func() error {
		var err error
		id, err = s.client.InitializeQueryTool(ctx, s.cfg.Target)
		return err
	})
	return id, err
}
