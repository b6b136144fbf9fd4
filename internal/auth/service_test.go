package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/keychain"
)

const server = "http://pg:5050"

type fakeBackend struct {
	password string
	calls    int
}

func (f *fakeBackend) Login(_ context.Context, _, password string) error {
	f.calls++
	if password != f.password {
		return &backend.HTTPError{ReadyState: backend.ReadyStateDone, Status: http.StatusUnauthorized}
	}
	return nil
}

func newSecrets() *keychain.Manager {
	return keychain.NewWithRing(keyring.NewArrayKeyring(nil))
}

func prompter(answer string, asked *int) PromptFunc {
	return func(string) (string, error) {
		*asked++
		return answer, nil
	}
}

func TestIsLoginRequired(t *testing.T) {
	s := NewService(&fakeBackend{}, newSecrets(), server, "a@b", nil, nil)
	tests := []struct {
		name string
		err  *backend.HTTPError
		want bool
	}{
		{"nil", nil, false},
		{"marker", &backend.HTTPError{Status: 401, Response: &backend.ErrorBody{Info: backend.InfoLoginRequired}}, true},
		{"plain 401", &backend.HTTPError{Status: 401}, false},
		{"marker on 403", &backend.HTTPError{Status: 403, Response: &backend.ErrorBody{Info: backend.InfoLoginRequired}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsLoginRequired(tt.err))
		})
	}
}

func TestLogin_UsesStoredPassword(t *testing.T) {
	secrets := newSecrets()
	require.NoError(t, secrets.SavePassword(server, "a@b", "right"))
	be := &fakeBackend{password: "right"}
	asked := 0

	s := NewService(be, secrets, server, "a@b", prompter("unused", &asked), nil)
	require.NoError(t, s.Login(context.Background()))

	assert.Equal(t, 1, be.calls)
	assert.Zero(t, asked)

	st, ok, err := s.WhoAmI()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@b", st.Email)
}

func TestLogin_PromptsWhenStoredPasswordRejected(t *testing.T) {
	secrets := newSecrets()
	require.NoError(t, secrets.SavePassword(server, "a@b", "stale"))
	be := &fakeBackend{password: "fresh"}
	asked := 0

	s := NewService(be, secrets, server, "a@b", prompter("fresh", &asked), nil)
	require.NoError(t, s.Login(context.Background()))

	assert.Equal(t, 2, be.calls)
	assert.Equal(t, 1, asked)
	pw, err := secrets.LoadPassword(server, "a@b")
	require.NoError(t, err)
	assert.Equal(t, "fresh", pw, "prompted password is remembered")
}

func TestLogin_NoPasswordNoPrompt(t *testing.T) {
	s := NewService(&fakeBackend{password: "x"}, newSecrets(), server, "a@b", nil, nil)
	err := s.Login(context.Background())
	assert.ErrorContains(t, err, "pgquery login")
}

func TestLogin_NoEmail(t *testing.T) {
	s := NewService(&fakeBackend{}, newSecrets(), server, "", nil, nil)
	assert.ErrorIs(t, s.Login(context.Background()), ErrNoEmail)
}

func TestLogin_PromptError(t *testing.T) {
	boom := errors.New("no tty")
	s := NewService(&fakeBackend{}, newSecrets(), server, "a@b", func(string) (string, error) { return "", boom }, nil)
	assert.ErrorIs(t, s.Login(context.Background()), boom)
}

func TestWhoAmI_OtherServer(t *testing.T) {
	secrets := newSecrets()
	s := NewService(&fakeBackend{password: "pw"}, secrets, server, "a@b", nil, nil)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	require.NoError(t, s.LoginWithPassword(context.Background(), "a@b", "pw", true))

	other := NewService(&fakeBackend{}, secrets, "http://elsewhere", "a@b", nil, nil)
	_, ok, err := other.WhoAmI()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	secrets := newSecrets()
	s := NewService(&fakeBackend{password: "pw"}, secrets, server, "a@b", nil, nil)
	require.NoError(t, s.LoginWithPassword(context.Background(), "a@b", "pw", true))

	require.NoError(t, s.Logout())

	_, ok, err := s.WhoAmI()
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = secrets.LoadPassword(server, "a@b")
	assert.ErrorIs(t, err, keychain.ErrNotFound)

	assert.NoError(t, s.Logout(), "logout is idempotent")
}
