// Package identity adapts the hosted identity provider: it verifies
// sign-in tokens, keeps the current user, and restores sessions from the
// system keyring.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/runalert/internal/credential"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/remote"
)

// tokenKey is the keyring entry holding the last ID token.
const tokenKey = "id-token"

var (
	// ErrSessionExpired is returned when a token is past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidToken is returned for tokens that cannot identify a user.
	ErrInvalidToken = errors.New("invalid identity token")
)

// Verifier checks ID tokens against the identity provider.
type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// TokenStore persists the session token.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Config wires a Session.
type Config struct {
	// Verifier may be nil, in which case tokens are decoded without
	// signature verification.
	Verifier Verifier
	Tokens   TokenStore

	// Profiles holds the user profile documents.
	Profiles        remote.Store
	UsersCollection string

	Now func() time.Time
}

// Session tracks the signed-in user.
type Session struct {
	cfg Config

	mu        sync.Mutex
	user      *model.User
	listeners map[int]func(*model.User)
	nextID    int
}

// NewSession creates a signed-out session.
func NewSession(cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{cfg: cfg, listeners: make(map[int]func(*model.User))}
}

type claims struct {
	uid     string
	email   string
	name    string
	expires time.Time
}

// SignIn verifies idToken, loads the user's profile, and remembers the
// token for Restore.
func (s *Session) SignIn(ctx context.Context, idToken string) (*model.User, error) {
	c, err := s.verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	user := model.User{UID: c.uid, Email: c.email, DisplayName: c.name}
	s.loadProfile(ctx, &user)

	if s.cfg.Tokens != nil {
		if err := s.cfg.Tokens.Set(tokenKey, idToken); err != nil {
			log.Printf("identity: could not store session token: %v", err)
		}
	}

	s.setUser(&user)
	return s.CurrentUser(), nil
}

// Restore signs in with the stored token, if any. It returns nil without
// error when there is no usable stored session.
func (s *Session) Restore(ctx context.Context) (*model.User, error) {
	if s.cfg.Tokens == nil {
		return nil, nil
	}

	token, err := s.cfg.Tokens.Get(tokenKey)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading stored session: %w", err)
	}

	user, err := s.SignIn(ctx, token)
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrInvalidToken) {
		log.Printf("identity: discarding stored session: %v", err)
		if derr := s.cfg.Tokens.Delete(tokenKey); derr != nil {
			log.Printf("identity: %v", derr)
		}
		return nil, nil
	}
	return user, err
}

// UseLocalUser signs in a user without a token, for demo mode.
func (s *Session) UseLocalUser(ctx context.Context, user model.User) *model.User {
	s.loadProfile(ctx, &user)
	s.setUser(&user)
	return s.CurrentUser()
}

// SignOut forgets the current user and the stored token.
func (s *Session) SignOut() error {
	var err error
	if s.cfg.Tokens != nil {
		err = s.cfg.Tokens.Delete(tokenKey)
	}
	s.setUser(nil)
	return err
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Session) CurrentUser() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.user)
}

// OnAuthStateChanged calls fn with the current user now and after every
// sign-in or sign-out. The returned function unregisters fn.
func (s *Session) OnAuthStateChanged(fn func(*model.User)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	current := copyUser(s.user)
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SetDismissed updates the local copy of the user's dismissed set.
func (s *Session) SetDismissed(messageID string, dismissed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}

	ids := make([]string, 0, len(s.user.DismissedMessageIDs)+1)
	for _, id := range s.user.DismissedMessageIDs {
		if id != messageID {
			ids = append(ids, id)
		}
	}
	if dismissed {
		ids = append(ids, messageID)
	}
	s.user.DismissedMessageIDs = ids
}

// RefreshProfile reloads the profile document for the current user.
func (s *Session) RefreshProfile(ctx context.Context) {
	u := s.CurrentUser()
	if u == nil {
		return
	}
	s.loadProfile(ctx, u)

	s.mu.Lock()
	if s.user != nil && s.user.UID == u.UID {
		s.user.DismissedMessageIDs = u.DismissedMessageIDs
	}
	s.mu.Unlock()
}

func (s *Session) loadProfile(ctx context.Context, u *model.User) {
	if s.cfg.Profiles == nil {
		return
	}

	doc, err := s.cfg.Profiles.Get(ctx, s.cfg.UsersCollection, u.UID)
	if errors.Is(err, remote.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("identity: loading profile for %s: %v", u.UID, err)
		return
	}

	profile := model.UserFromFields(u.UID, doc.Fields)
	u.DismissedMessageIDs = profile.DismissedMessageIDs
	if u.Email == "" {
		u.Email = profile.Email
	}
	if u.DisplayName == "" {
		u.DisplayName = profile.DisplayName
	}
}

func (s *Session) setUser(u *model.User) {
	s.mu.Lock()
	s.user = copyUser(u)
	listeners := make([]func(*model.User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(copyUser(u))
	}
}

// verify checks the token with the identity provider. When the provider
// cannot be reached the token's own claims are trusted, so a session
// keeps working offline.
func (s *Session) verify(ctx context.Context, idToken string) (claims, error) {
	if s.cfg.Verifier != nil {
		tok, err := s.cfg.Verifier.VerifyIDToken(ctx, idToken)
		switch {
		case err == nil:
			return claimsFromToken(tok), nil
		case auth.IsIDTokenExpired(err):
			return claims{}, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		case auth.IsIDTokenInvalid(err), auth.IsIDTokenRevoked(err):
			return claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		default:
			log.Printf("identity: token verification unavailable, using unverified claims: %v", err)
		}
	}
	return s.parseUnverified(idToken)
}

func claimsFromToken(tok *auth.Token) claims {
	c := claims{uid: tok.UID, expires: time.Unix(tok.Expires, 0)}
	if email, ok := tok.Claims["email"].(string); ok {
		c.email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		c.name = name
	}
	return c
}

func (s *Session) parseUnverified(idToken string) (claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, mc); err != nil {
		return claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var c claims
	if uid, ok := mc["user_id"].(string); ok {
		c.uid = uid
	}
	if c.uid == "" {
		sub, _ := mc.GetSubject()
		c.uid = sub
	}
	if c.uid == "" {
		return claims{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	c.email, _ = mc["email"].(string)
	c.name, _ = mc["name"].(string)

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil {
		c.expires = exp.Time
		if !s.cfg.Now().Before(exp.Time) {
			return claims{}, ErrSessionExpired
		}
	}
	return c, nil
}

func copyUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.DismissedMessageIDs = append([]string(nil), u.DismissedMessageIDs...)
	return &cp
}
