// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local persistence for chat sessions and settings.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/jeranaias/orchat/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = &StorageError{Message: "stored value is corrupt"}

	// ErrInvalidKey is returned for keys that cannot be used as file names.
	ErrInvalidKey = &StorageError{Message: "invalid storage key"}
)

// StorageError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// KEY-VALUE INTERFACE
// =============================================================================

// KV is a durable string key-value store.
type KV interface {
	// Load returns the stored value and true, or "" and false if the key is
	// absent.
	Load(ctx context.Context, key string) (string, bool, error)

	// Save replaces the value stored under key.
	Save(ctx context.Context, key, value string) error

	// Close releases any underlying resources.
	Close() error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileKV stores each key as <dir>/<key>.json.
type FileKV struct {
	dir string
	mu  sync.Mutex
}

// NewFileKV creates a file-backed store rooted at dir, creating it if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

// Dir returns the directory holding the value files.
func (f *FileKV) Dir() string {
	return f.dir
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Load reads the file for key.
func (f *FileKV) Load(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Save writes the file for key atomically.
func (f *FileKV) Save(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(f.path(key), []byte(value), 0600, 0700); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (f *FileKV) Close() error {
	return nil
}
