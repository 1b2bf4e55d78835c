package storage

import (
	"context"
	"time"

	"github.com/keystrand/keystrand/internal/auth/user"
	"github.com/keystrand/keystrand/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrDuplicateEmail indicates an email address already registered to a user.
var ErrDuplicateEmail = errors.New(errors.CodeDuplicateEmail, "email address is already registered")

// ErrDuplicateCredential indicates a credential ID already registered.
var ErrDuplicateCredential = errors.New(errors.CodeDuplicateCredential, "credential is already registered")

// Challenge stores a server-issued nonce awaiting a ceremony response.
type Challenge struct {
	ID        string
	Bytes     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Credential stores a verified passkey public key for a user.
type Credential struct {
	ID        string
	UserID    string
	PublicKey []byte
	Algorithm string
	CreatedAt time.Time
}

// Session stores a server-side login session.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ChallengeStore persists single-use ceremony challenges.
type ChallengeStore interface {
	PutChallenge(ctx context.Context, challenge Challenge) error

	// TakeChallenge atomically fetches and deletes a challenge so that no
	// two ceremonies can consume the same one. Expired challenges are
	// reported as ErrNotFound.
	TakeChallenge(ctx context.Context, id string, now time.Time) (Challenge, error)

	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
}

// UserStore persists auth user records.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)

	// CreateUserWithCredential inserts a user and their first credential in
	// one transaction. Either both rows land or neither does.
	CreateUserWithCredential(ctx context.Context, u user.User, credential Credential) error
}

// CredentialStore persists passkey credentials.
type CredentialStore interface {
	GetCredential(ctx context.Context, credentialID string) (Credential, error)
	ListCredentialsByUser(ctx context.Context, userID string) ([]Credential, error)
}

// SessionStore persists login sessions.
type SessionStore interface {
	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsByUser(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}
