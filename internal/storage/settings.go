package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Settings keys. Neither affects accounting.
const (
	SettingHiddenSites     = "hiddenSites"
	SettingShowHiddenSites = "showHiddenSites"
)

// Settings is a key-value store for presentation flags.
type Settings struct {
	db *sql.DB
}

// NewSettings returns a Settings backed by the migrated database.
func NewSettings(db *sql.DB) *Settings {
	return &Settings{db: db}
}

// Get returns the raw value for key and whether it exists.
func (s *Settings) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, opError("settings get", err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return opError("settings set", err)
}

// HiddenSites returns the hostnames excluded from display, sorted.
func (s *Settings) HiddenSites(ctx context.Context) ([]string, error) {
	raw, ok, err := s.Get(ctx, SettingHiddenSites)
	if err != nil {
		return nil, err
	}
	sites := []string{}
	if !ok || raw == "" {
		return sites, nil
	}
	if err := sonic.UnmarshalString(raw, &sites); err != nil {
		return nil, fmt.Errorf("decode %s: %w", SettingHiddenSites, err)
	}
	return sites, nil
}

// SetHiddenSites replaces the hidden list, normalizing case and dropping
// blanks and duplicates.
func (s *Settings) SetHiddenSites(ctx context.Context, sites []string) error {
	seen := make(map[string]struct{}, len(sites))
	clean := make([]string, 0, len(sites))
	for _, site := range sites {
		site = strings.ToLower(strings.TrimSpace(site))
		if site == "" {
			continue
		}
		if _, dup := seen[site]; dup {
			continue
		}
		seen[site] = struct{}{}
		clean = append(clean, site)
	}
	sort.Strings(clean)

	raw, err := sonic.MarshalString(clean)
	if err != nil {
		return fmt.Errorf("encode %s: %w", SettingHiddenSites, err)
	}
	return s.Set(ctx, SettingHiddenSites, raw)
}

// ShowHiddenSites reports whether hidden sites should be displayed anyway.
func (s *Settings) ShowHiddenSites(ctx context.Context) (bool, error) {
	raw, ok, err := s.Get(ctx, SettingShowHiddenSites)
	if err != nil || !ok {
		return false, err
	}
	show, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", SettingShowHiddenSites, err)
	}
	return show, nil
}

// SetShowHiddenSites stores the show-hidden flag.
func (s *Settings) SetShowHiddenSites(ctx context.Context, show bool) error {
	return s.Set(ctx, SettingShowHiddenSites, strconv.FormatBool(show))
}
