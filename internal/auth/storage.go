// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"encoding/json"
	"errors"
	"time"

	"pgquery/cli/internal/keychain"
)

// State is the persisted login state shown by whoami.
type State struct {
	LoggedIn   bool      `json:"logged_in"`
	Email      string    `json:"email"`
	Server     string    `json:"server"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// Secrets is the credential store the service persists to.
type Secrets interface {
	SavePassword(server, email, password string) error
	LoadPassword(server, email string) (string, error)
	DeletePassword(server, email string) error
	SaveAuthState(data []byte) error
	LoadAuthState() ([]byte, error)
	ClearAuthState() error
}

// loadState reads the state. Missing state yields the zero value.
func loadState(s Secrets) (State, error) {
	var st State
	data, err := s.LoadAuthState()
	if errors.Is(err, keychain.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}

func saveState(s Secrets, st State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return s.SaveAuthState(b)
}
