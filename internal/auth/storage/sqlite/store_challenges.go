package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keystrand/keystrand/internal/auth/storage"
)

// PutChallenge stores an issued challenge.
func (s *Store) PutChallenge(ctx context.Context, challenge storage.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(challenge.ID) == "" {
		return fmt.Errorf("challenge id is required")
	}
	if len(challenge.Bytes) == 0 {
		return fmt.Errorf("challenge bytes are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO challenges (id, bytes, created_at, expires_at)
VALUES (?, ?, ?, ?)
`,
		challenge.ID,
		challenge.Bytes,
		toMillis(challenge.CreatedAt),
		toMillis(challenge.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// TakeChallenge deletes the challenge and returns it in the same statement,
// so concurrent ceremonies racing on one ID see exactly one winner. Expired
// challenges are deleted but reported as missing.
func (s *Store) TakeChallenge(ctx context.Context, id string, now time.Time) (storage.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return storage.Challenge{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Challenge{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.Challenge{}, fmt.Errorf("challenge id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
DELETE FROM challenges
WHERE id = ?
RETURNING id, bytes, created_at, expires_at
`, id)

	var record storage.Challenge
	var createdAt, expiresAt int64
	if err := row.Scan(&record.ID, &record.Bytes, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Challenge{}, storage.ErrNotFound
		}
		return storage.Challenge{}, fmt.Errorf("take challenge: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.ExpiresAt = fromMillis(expiresAt)

	if !now.UTC().Before(record.ExpiresAt) {
		return storage.Challenge{}, storage.ErrNotFound
	}
	return record, nil
}

// DeleteExpiredChallenges removes challenges past their expiry.
func (s *Store) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at <= ?`, toMillis(now)); err != nil {
		return fmt.Errorf("delete expired challenges: %w", err)
	}
	return nil
}
