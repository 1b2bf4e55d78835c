package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/keystrand/keystrand/internal/auth/storage"
)

// GetCredential fetches a stored passkey credential.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return storage.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Credential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return storage.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, user_id, public_key, algorithm, created_at
FROM credentials
WHERE id = ?
`, credentialID)

	var record storage.Credential
	var createdAt int64
	if err := row.Scan(&record.ID, &record.UserID, &record.PublicKey, &record.Algorithm, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Credential{}, storage.ErrNotFound
		}
		return storage.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// ListCredentialsByUser returns the credentials registered to a user.
func (s *Store) ListCredentialsByUser(ctx context.Context, userID string) ([]storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, public_key, algorithm, created_at
FROM credentials
WHERE user_id = ?
ORDER BY created_at
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var credentials []storage.Credential
	for rows.Next() {
		var record storage.Credential
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.UserID, &record.PublicKey, &record.Algorithm, &createdAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		credentials = append(credentials, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}
