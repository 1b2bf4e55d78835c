package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keystrand/keystrand/internal/auth/storage"
	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
	"github.com/keystrand/keystrand/internal/platform/id"
)

// TTL is the lifetime granted to a session on creation and on renewal.
const TTL = 30 * 24 * time.Hour

// RenewalWindow is how close to expiry a validated session must be before
// its lifetime is extended. Validations earlier than this leave the expiry
// untouched so hot sessions do not rewrite the store on every request.
const RenewalWindow = 15 * 24 * time.Hour

// ErrNotAuthenticated indicates a missing, expired, or revoked session.
var ErrNotAuthenticated = apperrors.New(apperrors.CodeNotAuthenticated, "not authenticated")

// Session is a validated login session.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time

	// Fresh reports that this validation extended the session lifetime, so
	// the transport should reissue its cookie. It is derived, never stored.
	Fresh bool
}

// Manager creates, validates, and revokes login sessions.
type Manager struct {
	store storage.SessionStore
	now   func() time.Time
}

// NewManager wires a session manager over the given store.
func NewManager(store storage.SessionStore) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Issue creates a session for the user and persists it.
func (m *Manager) Issue(ctx context.Context, userID string) (Session, error) {
	if m == nil || m.store == nil {
		return Session{}, fmt.Errorf("session store is not configured")
	}
	if userID == "" {
		return Session{}, fmt.Errorf("user id is required")
	}

	sessionID, err := id.NewID()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	issuedAt := m.now().UTC()
	record := storage.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: issuedAt,
		ExpiresAt: issuedAt.Add(TTL),
	}
	if err := m.store.PutSession(ctx, record); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return Session{ID: record.ID, UserID: record.UserID, CreatedAt: record.CreatedAt, ExpiresAt: record.ExpiresAt}, nil
}

// Validate resolves a session ID to its session. Expired sessions are
// deleted and reported as ErrNotAuthenticated. A session inside the renewal
// window gets its expiry pushed out to a full TTL and comes back Fresh.
func (m *Manager) Validate(ctx context.Context, sessionID string) (Session, error) {
	if m == nil || m.store == nil {
		return Session{}, fmt.Errorf("session store is not configured")
	}
	if sessionID == "" {
		return Session{}, ErrNotAuthenticated
	}

	record, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrNotAuthenticated
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	now := m.now().UTC()
	if !now.Before(record.ExpiresAt) {
		// Best effort cleanup; the session is rejected either way.
		_ = m.store.DeleteSession(ctx, sessionID)
		return Session{}, ErrNotAuthenticated
	}

	result := Session{ID: record.ID, UserID: record.UserID, CreatedAt: record.CreatedAt, ExpiresAt: record.ExpiresAt}
	if record.ExpiresAt.Sub(now) < RenewalWindow {
		renewed := now.Add(TTL)
		if err := m.store.UpdateSessionExpiry(ctx, sessionID, renewed); err != nil {
			return Session{}, fmt.Errorf("renew session: %w", err)
		}
		result.ExpiresAt = renewed
		result.Fresh = true
	}
	return result, nil
}

// Revoke deletes a single session. Revoking an unknown session is not an
// error.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if m == nil || m.store == nil {
		return fmt.Errorf("session store is not configured")
	}
	if sessionID == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeAll deletes every session belonging to the user.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	if m == nil || m.store == nil {
		return fmt.Errorf("session store is not configured")
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := m.store.DeleteSessionsByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// Sweep deletes expired sessions.
func (m *Manager) Sweep(ctx context.Context) error {
	if m == nil || m.store == nil {
		return fmt.Errorf("session store is not configured")
	}
	return m.store.DeleteExpiredSessions(ctx, m.now().UTC())
}
