package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

func decodeSettings(raw string) (map[string]json.RawMessage, error) {
	settings := map[string]json.RawMessage{}
	if raw == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// Setting returns the raw value stored under key, or nil when unset.
func (r *SQLiteRepository) Setting(ctx context.Context, userID int64, key string) (json.RawMessage, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT settings FROM users WHERE id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	settings, err := decodeSettings(raw)
	if err != nil {
		return nil, err
	}
	return settings[key], nil
}

// UpdateSetting merges key into the user's settings blob.
func (r *SQLiteRepository) UpdateSetting(ctx context.Context, userID int64, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("setting %q: invalid JSON value", key)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT settings FROM users WHERE id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	settings, err := decodeSettings(raw)
	if err != nil {
		return err
	}
	settings[key] = value

	encoded, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET settings = ? WHERE id = ?`, string(encoded), userID); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return tx.Commit()
}
