// Package session owns the process-wide logged-in user. It is the only writer of session
// state; everything else reads it through Current.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/model"
)

// Context is the explicitly scoped session: get current user, set on login, clear on logout.
type Context struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	mu        sync.RWMutex
	user      *model.SessionUser
	expiresAt time.Time
}

// New constructs a Context over store. Call Load to pick up a persisted session.
func New(store Store, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{store: store, log: log, now: time.Now}
}

// Load restores the persisted session. Missing records mean logged out; an expired token or
// an unreadable record invalidates and removes both records.
func (c *Context) Load() error {
	u, exp, err := c.store.Load()
	if errors.Is(err, errs.ErrNotFound) {
		c.set(nil, time.Time{})
		return nil
	}
	if err != nil {
		c.log.Warn("discarding unreadable session", zap.Error(err))
		c.set(nil, time.Time{})
		return c.store.Clear()
	}
	if !exp.IsZero() && c.now().After(exp) {
		c.log.Info("session token expired", zap.String("username", u.Username), zap.Time("expires_at", exp))
		c.set(nil, time.Time{})
		return c.store.Clear()
	}
	c.set(&u, exp)
	return nil
}

// Current returns the active user. A token that expired since Load invalidates the session.
func (c *Context) Current() (model.SessionUser, bool) {
	c.mu.RLock()
	u, exp := c.user, c.expiresAt
	c.mu.RUnlock()
	if u == nil {
		return model.SessionUser{}, false
	}
	if !exp.IsZero() && c.now().After(exp) {
		c.log.Info("session token expired", zap.String("username", u.Username))
		if err := c.Invalidate(); err != nil {
			c.log.Warn("clear expired session", zap.Error(err))
		}
		return model.SessionUser{}, false
	}
	return *u, true
}

// LoggedIn reports whether a user is active.
func (c *Context) LoggedIn() bool {
	_, ok := c.Current()
	return ok
}

// SetUser makes u the active user and persists it. Replaces any previous user.
func (c *Context) SetUser(u model.SessionUser) error {
	if u.AuthToken == "" {
		return errors.New("session: empty auth token")
	}
	exp := TokenExpiry(u.AuthToken)
	if err := c.store.Save(u, exp); err != nil {
		return err
	}
	c.set(&u, exp)
	c.log.Info("logged in", zap.Int("user_id", u.ID), zap.String("username", u.Username))
	return nil
}

// Clear logs out: forgets the user and removes both persisted records.
func (c *Context) Clear() error {
	c.set(nil, time.Time{})
	return c.store.Clear()
}

// Invalidate is Clear for a token the server or the clock no longer accepts.
func (c *Context) Invalidate() error {
	c.log.Info("session invalidated")
	return c.Clear()
}

func (c *Context) set(u *model.SessionUser, exp time.Time) {
	c.mu.Lock()
	c.user, c.expiresAt = u, exp
	c.mu.Unlock()
}

// TokenExpiry reads the exp claim of a JWT without verifying it. Opaque (non-JWT) tokens and
// tokens without exp yield the zero time.
func TokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
