package session

import (
	"context"
	"errors"
	"fmt"

	"civiclens/portal/models"
	"civiclens/portal/notify"
)

// ErrNoSession gates dashboard operations attempted without a session. The
// caller is expected to route the user back to the login screen.
var ErrNoSession = errors.New("no active session")

// Authenticator exchanges credentials for a session. The API client
// implements this.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (models.Session, error)
}

// Guard owns login, logout, and the dashboard entry check. Everything else
// only reads the store; the guard (and the 401 handler inside the auth
// transport) are the only writers.
type Guard struct {
	store  *Store
	auth   Authenticator
	toasts *notify.Hub
}

// NewGuard wires the guard to its store, authenticator, and notification
// channel.
func NewGuard(store *Store, auth Authenticator, toasts *notify.Hub) *Guard {
	return &Guard{store: store, auth: auth, toasts: toasts}
}

// Login authenticates and persists the session. Failures surface a generic
// denial so the message never confirms whether the username exists.
func (g *Guard) Login(ctx context.Context, username, password string) error {
	sess, err := g.auth.Login(ctx, username, password)
	if err != nil {
		g.toasts.Error("Access denied. Verify credentials.")
		return fmt.Errorf("login failed: %w", err)
	}

	if err := g.store.Save(sess); err != nil {
		g.toasts.Error("Could not save your session.")
		return err
	}
	return nil
}

// Logout clears the session and advises the user.
func (g *Guard) Logout() error {
	if err := g.store.Clear(); err != nil {
		return err
	}
	g.toasts.Info("Logged out successfully.")
	return nil
}

// Require gates dashboard-scoped operations on session presence.
func (g *Guard) Require() error {
	if !g.store.Session().Valid() {
		return ErrNoSession
	}
	return nil
}
