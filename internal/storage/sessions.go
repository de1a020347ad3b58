package storage

import (
	"context"
	"time"

	"github.com/starford/mindmaps/internal/models"
)

// InsertSession stores a bearer token.
func (db *DB) InsertSession(ctx context.Context, s models.Session) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID, s.ExpiresAt.UnixNano())
	return classify("storage: insert session", err)
}

// SessionByToken returns the session for token or apperr.ErrNotFound.
func (db *DB) SessionByToken(ctx context.Context, token string) (*models.Session, error) {
	var (
		s       models.Session
		expires int64
	)
	err := db.conn.QueryRowContext(ctx, `SELECT token, user_id, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &expires)
	if err != nil {
		return nil, classify("storage: session by token", err)
	}
	s.ExpiresAt = time.Unix(0, expires).UTC()
	return &s, nil
}

// DeleteSession removes a token. Deleting an unknown token is not an error.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return classify("storage: delete session", err)
}

// PurgeExpiredSessions deletes every session that expired before now and
// returns how many were removed.
func (db *DB) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, classify("storage: purge sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
