package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/models"
)

const userColumns = `id, username, email, first_name, last_name, created_at, last_login`

// InsertUser stores a new account. Duplicate username or email yields apperr.ErrAlreadyExists.
func (db *DB) InsertUser(ctx context.Context, u *models.User, passwordHash []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, passwordHash, u.FirstName, u.LastName, u.CreatedAt.UnixNano())
	return classify("storage: insert user", err)
}

// UserByID returns the account with id or apperr.ErrNotFound.
func (db *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, classify("storage: user by id", err)
	}
	return u, nil
}

// UserByName returns the account with the given username or apperr.ErrNotFound.
func (db *DB) UserByName(ctx context.Context, username string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, classify("storage: user by name", err)
	}
	return u, nil
}

// Credentials returns the account and password hash for email.
func (db *DB) Credentials(ctx context.Context, email string) (*models.User, []byte, error) {
	var hash []byte
	var id string
	err := db.conn.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email = ?`, email).Scan(&id, &hash)
	if err != nil {
		return nil, nil, classify("storage: credentials", err)
	}
	u, err := db.UserByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return u, hash, nil
}

// PasswordHash returns the stored hash for a user id.
func (db *DB) PasswordHash(ctx context.Context, id string) ([]byte, error) {
	var hash []byte
	if err := db.conn.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = ?`, id).Scan(&hash); err != nil {
		return nil, classify("storage: password hash", err)
	}
	return hash, nil
}

// UpdateProfile overwrites the display names of a user.
func (db *DB) UpdateProfile(ctx context.Context, id, firstName, lastName string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET first_name = ?, last_name = ? WHERE id = ?`, firstName, lastName, id)
	if err != nil {
		return classify("storage: update profile", err)
	}
	return requireRow(res, "storage: update profile")
}

// SetPasswordHash replaces a user's password hash.
func (db *DB) SetPasswordHash(ctx context.Context, id string, hash []byte) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return classify("storage: set password", err)
	}
	return requireRow(res, "storage: set password")
}

// TouchLogin records a successful login time.
func (db *DB) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UnixNano(), id)
	return classify("storage: touch login", err)
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u         models.User
		created   int64
		lastLogin sql.NullInt64
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &created, &lastLogin); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	if lastLogin.Valid {
		t := time.Unix(0, lastLogin.Int64).UTC()
		u.LastLogin = &t
	}
	return &u, nil
}

func requireRow(res sql.Result, op string) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return nil
}
