package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewWithRing(keyring.NewArrayKeyring(nil))
}

func TestPassword_RoundTrip(t *testing.T) {
	m := newTestManager()

	_, err := m.LoadPassword("http://pg:5050", "me@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SavePassword("http://pg:5050/", "Me@Example.com", "s3cret"))

	pw, err := m.LoadPassword("http://pg:5050", "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw, "key ignores trailing slash and email case")

	require.NoError(t, m.DeletePassword("http://pg:5050", "me@example.com"))
	_, err = m.LoadPassword("http://pg:5050", "me@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, m.DeletePassword("http://pg:5050", "me@example.com"), "deleting twice is fine")
}

func TestSavePassword_RejectsEmpty(t *testing.T) {
	assert.Error(t, newTestManager().SavePassword("http://pg", "a@b", ""))
}

func TestAuthState(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.SaveAuthState([]byte(`{"email":"a@b"}`)))

	data, err := m.LoadAuthState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b"}`, string(data))

	require.NoError(t, m.ClearAuthState())
	_, err = m.LoadAuthState()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.ClearAuthState())
}

func TestPasswordKey(t *testing.T) {
	assert.Equal(t, "pgadmin_password:https://pg|a@b.c", PasswordKey("https://pg/", "A@B.c"))
}
