package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/runalert/internal/credential"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/remote"
)

var now = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

type unreachableVerifier struct{}

func (unreachableVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return nil, errors.New("dial tcp: lookup www.googleapis.com: no such host")
}

type okVerifier struct{ uid string }

func (v okVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return &auth.Token{
		UID:     v.uid,
		Expires: now.Add(time.Hour).Unix(),
		Claims:  map[string]interface{}{"email": "runner@example.com"},
	}, nil
}

func newTestSession(t *testing.T, v Verifier) (*Session, *remote.Memory, *credential.Keyring) {
	t.Helper()
	profiles := remote.NewMemory("ra_messages")
	tokens := credential.NewKeyring(keyring.NewArrayKeyring(nil))
	s := NewSession(Config{
		Verifier:        v,
		Tokens:          tokens,
		Profiles:        profiles,
		UsersCollection: "users",
		Now:             func() time.Time { return now },
	})
	return s, profiles, tokens
}

func TestSession_SignInVerifiedLoadsProfile(t *testing.T) {
	ctx := context.Background()
	s, profiles, tokens := newTestSession(t, okVerifier{uid: "u1"})
	require.NoError(t, profiles.UpdateSetField(ctx, "users", "u1", "dismissedMessages", remote.SetAdd, "m1"))

	var seen []*model.User
	unsubscribe := s.OnAuthStateChanged(func(u *model.User) { seen = append(seen, u) })
	defer unsubscribe()

	u, err := s.SignIn(ctx, "opaque-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UID)
	assert.Equal(t, "runner@example.com", u.Email)
	assert.Equal(t, []string{"m1"}, u.DismissedMessageIDs)

	require.Len(t, seen, 2)
	assert.Nil(t, seen[0], "called immediately with the signed-out state")
	assert.Equal(t, "u1", seen[1].UID)

	stored, err := tokens.Get(tokenKey)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", stored)
}

func TestSession_OfflineFallsBackToUnverifiedClaims(t *testing.T) {
	s, _, _ := newTestSession(t, unreachableVerifier{})
	token := signToken(t, jwt.MapClaims{
		"user_id": "u2",
		"email":   "u2@example.com",
		"exp":     now.Add(time.Hour).Unix(),
	})

	u, err := s.SignIn(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u2", u.UID)
	assert.Equal(t, "u2@example.com", u.Email)
}

func TestSession_ExpiredToken(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	token := signToken(t, jwt.MapClaims{"sub": "u3", "exp": now.Add(-time.Minute).Unix()})

	_, err := s.SignIn(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, s.CurrentUser())
}

func TestSession_GarbageToken(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	_, err := s.SignIn(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_RestoreAndSignOut(t *testing.T) {
	ctx := context.Background()
	s, _, tokens := newTestSession(t, nil)

	u, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, u, "nothing stored")

	require.NoError(t, tokens.Set(tokenKey, signToken(t, jwt.MapClaims{"sub": "u4", "exp": now.Add(time.Hour).Unix()})))
	u, err = s.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u4", u.UID)

	require.NoError(t, s.SignOut())
	assert.Nil(t, s.CurrentUser())
	_, err = tokens.Get(tokenKey)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSession_RestoreDiscardsExpiredToken(t *testing.T) {
	s, _, tokens := newTestSession(t, nil)
	require.NoError(t, tokens.Set(tokenKey, signToken(t, jwt.MapClaims{"sub": "u5", "exp": now.Add(-time.Hour).Unix()})))

	u, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = tokens.Get(tokenKey)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSession_SetDismissed(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.UseLocalUser(context.Background(), model.User{UID: "demo"})

	s.SetDismissed("m1", true)
	s.SetDismissed("m2", true)
	s.SetDismissed("m1", false)

	assert.Equal(t, []string{"m2"}, s.CurrentUser().DismissedMessageIDs)
	assert.True(t, s.CurrentUser().HasDismissed("m2"))
}
