package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring_RoundTrip(t *testing.T) {
	k := NewKeyring(keyring.NewArrayKeyring(nil))

	_, err := k.Get("session")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Set("session", "token-1"))
	got, err := k.Get("session")
	require.NoError(t, err)
	assert.Equal(t, "token-1", got)

	require.NoError(t, k.Delete("session"))
	require.NoError(t, k.Delete("session"))

	_, err = k.Get("session")
	assert.ErrorIs(t, err, ErrNotFound)
}
