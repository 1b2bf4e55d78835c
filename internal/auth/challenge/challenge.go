package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/keystrand/keystrand/internal/auth/storage"
	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
	"github.com/keystrand/keystrand/internal/platform/id"
)

// Size is the length in bytes of every issued challenge.
const Size = 32

// DefaultTTL bounds how long an issued challenge stays consumable. A
// ceremony takes seconds, so anything older is abandoned.
const DefaultTTL = 5 * time.Minute

var (
	// ErrRandomnessFailure indicates the system randomness source failed.
	// Issuance never falls back to a weaker source.
	ErrRandomnessFailure = apperrors.New(apperrors.CodeRandomnessFailure, "could not draw randomness for challenge")

	// ErrNotFound indicates a challenge that was never issued, already
	// consumed, or expired. The three cases are indistinguishable on
	// purpose.
	ErrNotFound = apperrors.New(apperrors.CodeChallengeNotFound, "challenge not found")
)

// Manager issues single-use challenges and consumes them exactly once.
type Manager struct {
	store storage.ChallengeStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager wires a challenge manager over the given store. A zero ttl
// falls back to DefaultTTL.
func NewManager(store storage.ChallengeStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// Issue draws a fresh challenge, persists it, and returns it to be sent to
// the client runtime.
func (m *Manager) Issue(ctx context.Context) (storage.Challenge, error) {
	if m == nil || m.store == nil {
		return storage.Challenge{}, fmt.Errorf("challenge store is not configured")
	}

	raw := make([]byte, Size)
	if _, err := rand.Read(raw); err != nil {
		return storage.Challenge{}, apperrors.Wrap(apperrors.CodeRandomnessFailure, "draw challenge bytes", err)
	}

	challengeID, err := id.NewID()
	if err != nil {
		return storage.Challenge{}, fmt.Errorf("generate challenge id: %w", err)
	}

	issuedAt := m.now().UTC()
	record := storage.Challenge{
		ID:        challengeID,
		Bytes:     raw,
		CreatedAt: issuedAt,
		ExpiresAt: issuedAt.Add(m.ttl),
	}
	if err := m.store.PutChallenge(ctx, record); err != nil {
		return storage.Challenge{}, fmt.Errorf("store challenge: %w", err)
	}
	return record, nil
}

// Consume removes the challenge and returns its bytes. A second consume of
// the same ID fails, as does consuming an expired challenge.
func (m *Manager) Consume(ctx context.Context, challengeID string) ([]byte, error) {
	if m == nil || m.store == nil {
		return nil, fmt.Errorf("challenge store is not configured")
	}

	record, err := m.store.TakeChallenge(ctx, challengeID, m.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("take challenge: %w", err)
	}
	return record.Bytes, nil
}

// Sweep deletes expired challenges that were never consumed.
func (m *Manager) Sweep(ctx context.Context) error {
	if m == nil || m.store == nil {
		return fmt.Errorf("challenge store is not configured")
	}
	return m.store.DeleteExpiredChallenges(ctx, m.now().UTC())
}
