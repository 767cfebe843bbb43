// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jeranaias/orchat/internal/model"
)

// Fixed storage keys.
const (
	SessionsKey     = "chatSessions"
	SettingsKey     = "chatSettings"
	DefaultModelKey = "defaultModel"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the KV backend named by backend, rooted at dataDir.
func Open(backend, dataDir string) (KV, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileKV(dataDir)
	case BackendSQLite:
		return NewSQLiteKV(filepath.Join(dataDir, "orchat.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q, must be one of: file, sqlite", backend)
	}
}

// =============================================================================
// TYPED STORE
// =============================================================================

// Store persists the session list, settings and default model as JSON
// values under fixed keys.
type Store struct {
	kv KV
}

// NewStore wraps kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// KV returns the underlying key-value backend.
func (s *Store) KV() KV {
	return s.kv
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// LoadSessions returns the stored session list, or nil if none is stored.
// Transient placeholders left over from an interrupted exchange are dropped.
// A value that fails to decode is copied to "<key>.corrupt" and ErrCorrupt
// is returned.
func (s *Store) LoadSessions(ctx context.Context) ([]*model.ChatSession, error) {
	raw, ok, err := s.kv.Load(ctx, SessionsKey)
	if err != nil || !ok {
		return nil, err
	}

	var sessions []*model.ChatSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, s.quarantine(ctx, SessionsKey, raw, err)
	}

	out := sessions[:0]
	for _, sess := range sessions {
		if sess == nil || sess.ID == "" {
			continue
		}
		if sess.TransientCount() > 0 {
			sess.Messages = sess.History()
		}
		out = append(out, sess)
	}
	return out, nil
}

// SaveSessions stores the session list.
func (s *Store) SaveSessions(ctx context.Context, sessions []*model.ChatSession) error {
	if sessions == nil {
		sessions = []*model.ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}
	return s.kv.Save(ctx, SessionsKey, string(data))
}

// LoadSettings returns the stored settings merged over the defaults.
// The bool is false when nothing is stored.
func (s *Store) LoadSettings(ctx context.Context) (model.Settings, bool, error) {
	settings := model.DefaultSettings()
	raw, ok, err := s.kv.Load(ctx, SettingsKey)
	if err != nil || !ok {
		return settings, false, err
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return model.DefaultSettings(), false, s.quarantine(ctx, SettingsKey, raw, err)
	}
	return settings.Normalize(), true, nil
}

// SaveSettings stores the settings object.
func (s *Store) SaveSettings(ctx context.Context, settings model.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return s.kv.Save(ctx, SettingsKey, string(data))
}

// LoadDefaultModel returns the stored default model ID, or "".
func (s *Store) LoadDefaultModel(ctx context.Context) (string, error) {
	raw, ok, err := s.kv.Load(ctx, DefaultModelKey)
	if err != nil || !ok {
		return "", err
	}
	var id string
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return "", s.quarantine(ctx, DefaultModelKey, raw, err)
	}
	return id, nil
}

// SaveDefaultModel stores the default model ID.
func (s *Store) SaveDefaultModel(ctx context.Context, id string) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode default model: %w", err)
	}
	return s.kv.Save(ctx, DefaultModelKey, string(data))
}

// quarantine keeps a copy of an undecodable value so the next save does not
// destroy it, and returns the wrapped ErrCorrupt.
func (s *Store) quarantine(ctx context.Context, key, raw string, decodeErr error) error {
	if err := s.kv.Save(ctx, key+".corrupt", raw); err != nil {
		return fmt.Errorf("%w: %s: %v (backup failed: %v)", ErrCorrupt, key, decodeErr, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, decodeErr)
}
