package session

import (
	"sync"
	"time"
)

// Context is the single-writer view of the current session. Hydrate runs once
// at startup; every write goes through to the Store. Concurrent writers are
// not coordinated beyond memory safety: the last write wins.
type Context struct {
	mu       sync.RWMutex
	store    Store
	current  *Session
	hydrated bool
	now      func() time.Time
}

// NewContext creates a context over store. Call Hydrate before reading.
func NewContext(store Store) *Context {
	return &Context{store: store, now: time.Now}
}

// Hydrate loads the persisted session. Later calls are no-ops.
func (c *Context) Hydrate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hydrated {
		return nil
	}

	s, err := c.store.Load()
	if err != nil {
		return err
	}
	c.current = s
	c.hydrated = true
	return nil
}

// Current returns a copy of the session, or nil when anonymous or expired
func (c *Context) Current() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.current.Valid(c.now()) {
		return nil
	}
	return c.current.clone()
}

// Token returns the bearer token, or "" when anonymous
func (c *Context) Token() string {
	if s := c.Current(); s != nil {
		return s.Token
	}
	return ""
}

// User returns the identity, or nil when anonymous
func (c *Context) User() *User {
	if s := c.Current(); s != nil {
		return s.User
	}
	return nil
}

// Establish stores token and user together
func (c *Context) Establish(token string, user User) (*Session, error) {
	s, err := NewSession(token, user, c.now())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Save(s); err != nil {
		c.current = nil
		_ = c.store.Clear()
		return nil, err
	}
	c.current = s
	c.hydrated = true
	return s.clone(), nil
}

// Clear drops token and user together. Memory is cleared even when the
// store fails.
func (c *Context) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = nil
	c.hydrated = true
	return c.store.Clear()
}
