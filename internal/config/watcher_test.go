// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	ResetGlobalForTesting()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "default_model = \"a/one\"\n")

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changes <- c })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.WithDebounce(20 * time.Millisecond).Start()
	defer w.Close()

	writeConfig(t, path, "default_model = \"b/two\"\n[api]\nkeys = [\"k1\", \"k2\"]\n")

	select {
	case cfg := <-changes:
		if cfg.DefaultModel != "b/two" {
			t.Errorf("DefaultModel = %q", cfg.DefaultModel)
		}
		if len(cfg.API.Keys) != 2 {
			t.Errorf("Keys = %v", cfg.API.Keys)
		}
		if Global().DefaultModel != "b/two" {
			t.Error("reload should update the global config")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_IgnoresInvalidAndOtherFiles(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "default_model = \"a/one\"\n")

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changes <- c })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.WithDebounce(20 * time.Millisecond).Start()
	defer w.Close()

	writeConfig(t, filepath.Join(dir, "other.toml"), "x = 1\n")
	writeConfig(t, path, "[storage]\nbackend = \"redis\"\n")

	select {
	case cfg := <-changes:
		t.Errorf("unexpected reload: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
