package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Store is the subset of DB operations we need.
type Store interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CurseForgeAPIKeySetting is the settings key storing the CurseForge API key.
const CurseForgeAPIKeySetting = "curseforge_api_key"

const encPrefix = "enc:"

// SaveCurseForgeAPIKey stores the key, encrypted when encKey is set.
// A blank key removes it.
func SaveCurseForgeAPIKey(ctx context.Context, db Store, encKey, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		_, err := db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, CurseForgeAPIKeySetting)
		return err
	}
	value := apiKey
	if encKey != "" {
		enc, err := encrypt(apiKey, encKey)
		if err != nil {
			return err
		}
		value = encPrefix + enc
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, CurseForgeAPIKeySetting, value)
	return err
}

// LoadCurseForgeAPIKey returns the stored key, or "" when none is stored.
func LoadCurseForgeAPIKey(ctx context.Context, db Store, encKey string) (string, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, CurseForgeAPIKeySetting).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if enc, ok := strings.CutPrefix(v, encPrefix); ok {
		if encKey == "" {
			return "", errors.New("curseforge api key is encrypted but enc_key is not set")
		}
		dec, err := decrypt(enc, encKey)
		if err != nil {
			return "", fmt.Errorf("decrypt curseforge api key: %w", err)
		}
		v = dec
	}
	return v, nil
}

// EffectiveAPIKey prefers the stored key over the configured one.
func (c *Config) EffectiveAPIKey(ctx context.Context, db Store) (string, error) {
	stored, err := LoadCurseForgeAPIKey(ctx, db, c.EncKey)
	if err != nil {
		return "", err
	}
	if stored != "" {
		return stored, nil
	}
	return c.APIKey, nil
}
