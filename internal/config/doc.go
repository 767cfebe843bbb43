// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for orchat.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - APIConfig: Completion endpoint, key pool and timeout
//   - StorageConfig: Persistence backend and data directory
//   - Watcher: Reloads the config file on change
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ORCHAT_*)
//   - ~/.orchat/config.toml (or $ORCHAT_HOME/config.toml)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := cloud.NewClient(cfg.API.Keys...).WithTimeout(cfg.API.Timeout())
package config
