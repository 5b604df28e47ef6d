package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists the token-to-identity mapping.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *Session) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO sessions (token, username, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`,
		session.Token,
		session.Username,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByToken retrieves a session by its token.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	session := &Session{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT token, username, created_at, expires_at
		FROM sessions WHERE token = $1
	`, token).Scan(
		&session.Token,
		&session.Username,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// DeleteExpired removes all sessions whose expiry has passed and returns
// the number of rows removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM sessions WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
