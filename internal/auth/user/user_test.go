package user

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateUserNormalizesInput(t *testing.T) {
	fixedTime := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	input := CreateUserInput{Email: "  Alice@Example.COM  ", FirstName: " Alice ", LastName: " Doe "}

	created, err := CreateUser(input, func() time.Time { return fixedTime })
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if !strings.HasPrefix(created.ID, "user_") {
		t.Fatalf("expected prefixed id, got %q", created.ID)
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("expected lowercased trimmed email, got %q", created.Email)
	}
	if created.FirstName != "Alice" || created.LastName != "Doe" {
		t.Fatalf("expected trimmed names, got %q %q", created.FirstName, created.LastName)
	}
	if created.Role != RoleUser {
		t.Fatalf("expected role user, got %q", created.Role)
	}
	if !created.CreatedAt.Equal(fixedTime) {
		t.Fatal("expected created at to match fixed time")
	}
}

func TestCreateUserIDsAreUnique(t *testing.T) {
	input := CreateUserInput{Email: "alice@example.com"}
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		created, err := CreateUser(input, nil)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if seen[created.ID] {
			t.Fatalf("duplicate id %q", created.ID)
		}
		seen[created.ID] = true
	}
}

func TestNormalizeCreateUserInputValidation(t *testing.T) {
	_, err := NormalizeCreateUserInput(CreateUserInput{Email: "   "})
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected error %v, got %v", ErrInvalidEmail, err)
	}
}

func TestValidateEmailFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "valid", input: "alice@example.com", wantErr: nil},
		{name: "valid subdomain", input: "a.b@mail.example.co", wantErr: nil},
		{name: "valid plus tag", input: "alice+tag@example.com", wantErr: nil},
		{name: "empty", input: "", wantErr: ErrInvalidEmail},
		{name: "missing at", input: "alice.example.com", wantErr: ErrInvalidEmail},
		{name: "missing domain dot", input: "alice@example", wantErr: ErrInvalidEmail},
		{name: "whitespace", input: "alice @example.com", wantErr: ErrInvalidEmail},
		{name: "double at", input: "alice@@example.com", wantErr: ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
