package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/keystrand/keystrand/internal/auth/challenge"
	"github.com/keystrand/keystrand/internal/auth/session"
	"github.com/keystrand/keystrand/internal/auth/storage"
	"github.com/keystrand/keystrand/internal/auth/user"
	"github.com/keystrand/keystrand/internal/passkey"
	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
)

// ErrCredentialNotFound indicates a login with an unregistered credential.
var ErrCredentialNotFound = apperrors.New(apperrors.CodeCredentialNotFound, "credential is not registered")

// Service wires challenge, verification, user, and session flows together.
type Service struct {
	rp          *passkey.RelyingParty
	challenges  *challenge.Manager
	sessions    *session.Manager
	users       storage.UserStore
	credentials storage.CredentialStore

	now    func() time.Time
	tracer trace.Tracer
}

// Config carries the collaborators a Service needs.
type Config struct {
	RelyingParty *passkey.RelyingParty
	Challenges   *challenge.Manager
	Sessions     *session.Manager
	Users        storage.UserStore
	Credentials  storage.CredentialStore
}

// New builds an auth service from its collaborators.
func New(cfg Config) (*Service, error) {
	if cfg.RelyingParty == nil {
		return nil, fmt.Errorf("relying party is required")
	}
	if cfg.Challenges == nil {
		return nil, fmt.Errorf("challenge manager is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	return &Service{
		rp:          cfg.RelyingParty,
		challenges:  cfg.Challenges,
		sessions:    cfg.Sessions,
		users:       cfg.Users,
		credentials: cfg.Credentials,
		now:         time.Now,
		tracer:      otel.Tracer("keystrand/auth"),
	}, nil
}

// Challenge issues a fresh single-use challenge for either ceremony.
func (s *Service) Challenge(ctx context.Context) (storage.Challenge, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Challenge")
	defer span.End()
	return s.challenges.Issue(ctx)
}

// RegisterInput carries a registration request in wire form.
type RegisterInput struct {
	ChallengeID string

	Email     string
	FirstName string
	LastName  string

	CredentialID             string
	EncodedPublicKey         string
	Algorithm                int64
	EncodedClientData        string
	EncodedAuthenticatorData string
}

// Register verifies a registration response and, only after verification
// passes, creates the user together with their first credential and opens a
// session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, session.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer span.End()

	expected, err := s.challenges.Consume(ctx, in.ChallengeID)
	if err != nil {
		return user.User{}, session.Session{}, err
	}

	attestation, err := s.rp.VerifyAttestation(passkey.AttestationInput{
		EncodedClientData:        in.EncodedClientData,
		EncodedAuthenticatorData: in.EncodedAuthenticatorData,
		Challenge:                expected,
		CredentialID:             in.CredentialID,
		Algorithm:                in.Algorithm,
	})
	if err != nil {
		return user.User{}, session.Session{}, err
	}

	publicKey, err := passkey.Decode(in.EncodedPublicKey)
	if err != nil {
		return user.User{}, session.Session{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "decode public key", err)
	}
	// A key that cannot verify a future login is rejected here rather than
	// at first login.
	if err := passkey.ValidatePublicKey(attestation.Algorithm, publicKey); err != nil {
		return user.User{}, session.Session{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "validate public key", err)
	}

	created, err := user.CreateUser(user.CreateUserInput{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}, s.now)
	if err != nil {
		return user.User{}, session.Session{}, err
	}

	credential := storage.Credential{
		ID:        attestation.CredentialID,
		UserID:    created.ID,
		PublicKey: publicKey,
		Algorithm: string(attestation.Algorithm),
		CreatedAt: created.CreatedAt,
	}
	if err := s.users.CreateUserWithCredential(ctx, created, credential); err != nil {
		return user.User{}, session.Session{}, err
	}

	sess, err := s.sessions.Issue(ctx, created.ID)
	if err != nil {
		return user.User{}, session.Session{}, err
	}
	return created, sess, nil
}

// LoginInput carries a login request in wire form.
type LoginInput struct {
	ChallengeID string

	CredentialID             string
	EncodedClientData        string
	EncodedAuthenticatorData string
	EncodedSignature         string
}

// Login verifies an assertion against the stored credential and opens a
// session for its owner.
func (s *Service) Login(ctx context.Context, in LoginInput) (user.User, session.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	expected, err := s.challenges.Consume(ctx, in.ChallengeID)
	if err != nil {
		return user.User{}, session.Session{}, err
	}

	credential, err := s.credentials.GetCredential(ctx, in.CredentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, session.Session{}, ErrCredentialNotFound
		}
		return user.User{}, session.Session{}, fmt.Errorf("get credential: %w", err)
	}

	algorithm, err := passkey.ParseAlgorithm(credential.Algorithm)
	if err != nil {
		return user.User{}, session.Session{}, fmt.Errorf("stored credential algorithm: %w", err)
	}

	if _, err := s.rp.VerifyAssertion(passkey.AssertionInput{
		EncodedClientData:        in.EncodedClientData,
		EncodedAuthenticatorData: in.EncodedAuthenticatorData,
		EncodedSignature:         in.EncodedSignature,
		Challenge:                expected,
		PublicKey:                credential.PublicKey,
		Algorithm:                algorithm,
	}); err != nil {
		return user.User{}, session.Session{}, err
	}

	owner, err := s.users.GetUser(ctx, credential.UserID)
	if err != nil {
		return user.User{}, session.Session{}, fmt.Errorf("get credential owner: %w", err)
	}

	sess, err := s.sessions.Issue(ctx, owner.ID)
	if err != nil {
		return user.User{}, session.Session{}, err
	}
	return owner, sess, nil
}

// Logout revokes a single session. Unknown sessions are ignored.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()
	return s.sessions.Revoke(ctx, sessionID)
}

// LogoutAll revokes every session the user holds.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "auth.LogoutAll")
	defer span.End()
	return s.sessions.RevokeAll(ctx, userID)
}

// Session validates a session ID and resolves its user. The returned session
// is fresh when validation extended its lifetime.
func (s *Service) Session(ctx context.Context, sessionID string) (user.User, session.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Session")
	defer span.End()

	sess, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		return user.User{}, session.Session{}, err
	}

	owner, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The user row is gone; the session is worthless.
			_ = s.sessions.Revoke(ctx, sess.ID)
			return user.User{}, session.Session{}, session.ErrNotAuthenticated
		}
		return user.User{}, session.Session{}, fmt.Errorf("get session user: %w", err)
	}
	return owner, sess, nil
}
