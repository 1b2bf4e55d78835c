package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
)

var (
	// ErrInvalidEmail indicates a missing or malformed email address.
	ErrInvalidEmail = apperrors.New(apperrors.CodeInvalidEmail, "a valid email address is required")

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Role describes the authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an authenticated identity record.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      Role
	CreatedAt time.Time
}

// CreateUserInput describes the metadata needed to create a user.
type CreateUserInput struct {
	Email     string
	FirstName string
	LastName  string
}

// ValidateEmail enforces the canonical email shape used as the login
// identifier across the service.
func ValidateEmail(s string) error {
	if !emailPattern.MatchString(s) {
		return ErrInvalidEmail
	}
	return nil
}

// CreateUser creates a durable user identity from validated input.
//
// User IDs are prefixed, time-ordered UUIDs so that index locality follows
// insertion order in the backing store.
func CreateUser(input CreateUserInput, now func() time.Time) (User, error) {
	if now == nil {
		now = time.Now
	}

	normalized, err := NormalizeCreateUserInput(input)
	if err != nil {
		return User{}, err
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	return User{
		ID:        "user_" + uid.String(),
		Email:     normalized.Email,
		FirstName: normalized.FirstName,
		LastName:  normalized.LastName,
		Role:      RoleUser,
		CreatedAt: now().UTC(),
	}, nil
}

// NormalizeCreateUserInput trims and normalizes input before validation.
func NormalizeCreateUserInput(input CreateUserInput) (CreateUserInput, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := ValidateEmail(input.Email); err != nil {
		return CreateUserInput{}, err
	}
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	return input, nil
}
