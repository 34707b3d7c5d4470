package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/settings"
)

const (
	keySettings   = "settings"
	keyServiceIDs = "service_ids"
)

// LoadSettings returns the stored settings. The bool is false when none
// were ever saved.
func (s *Store) LoadSettings(ctx context.Context) (settings.Settings, bool, error) {
	cfg := settings.Default()
	found, err := s.loadConfig(ctx, keySettings, &cfg)
	if err != nil {
		return settings.Settings{}, false, fmt.Errorf("load settings: %w", err)
	}
	return cfg, found, nil
}

// SaveSettings replaces the stored settings.
func (s *Store) SaveSettings(ctx context.Context, cfg settings.Settings) error {
	if err := s.saveConfig(ctx, keySettings, cfg); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// LoadServiceIDs returns the stored service identities. The bool is false
// when none were ever saved.
func (s *Store) LoadServiceIDs(ctx context.Context) (ledger.ServiceIDs, bool, error) {
	var ids ledger.ServiceIDs
	found, err := s.loadConfig(ctx, keyServiceIDs, &ids)
	if err != nil {
		return ledger.ServiceIDs{}, false, fmt.Errorf("load service ids: %w", err)
	}
	return ids, found, nil
}

// SaveServiceIDs replaces the stored service identities.
func (s *Store) SaveServiceIDs(ctx context.Context, ids ledger.ServiceIDs) error {
	if err := s.saveConfig(ctx, keyServiceIDs, ids); err != nil {
		return fmt.Errorf("save service ids: %w", err)
	}
	return nil
}

func (s *Store) loadConfig(ctx context.Context, key string, dst any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) saveConfig(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), s.now().UnixMilli())
	return err
}
