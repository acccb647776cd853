// Package auth guards the HTTP API with a single bearer token whose bcrypt
// hash lives in the settings table.
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// TokenSetting is the settings key storing the API token hash.
const TokenSetting = "api_token_hash"

// Store is the subset of DB operations used by the auth package.
type Store interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	// ErrInvalidCredentials is returned when a token does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoToken is returned when no API token has been set.
	ErrNoToken = errors.New("api token not configured")
)

// HashToken hashes a plaintext token.
func HashToken(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyToken verifies a token against its hash.
func VerifyToken(hash, plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// NewToken generates a random URL-safe token.
func NewToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// SetToken replaces the API token.
func SetToken(ctx context.Context, db Store, token string) error {
	if len(token) < 16 {
		return errors.New("token must be at least 16 characters")
	}
	hash, err := HashToken(token)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, TokenSetting, hash)
	return err
}

// CheckToken verifies token against the stored hash.
func CheckToken(ctx context.Context, db Store, token string) error {
	var hash string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, TokenSetting).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoToken
	}
	if err != nil {
		return err
	}
	if token == "" {
		return ErrInvalidCredentials
	}
	return VerifyToken(hash, token)
}
