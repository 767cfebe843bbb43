// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app assembles the configured client, storage, session store and
// orchestrator shared by every front end.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jeranaias/orchat/internal/chat"
	"github.com/jeranaias/orchat/internal/cloud"
	"github.com/jeranaias/orchat/internal/config"
	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/session"
	"github.com/jeranaias/orchat/internal/storage"
)

// App holds the long-lived components of one process.
type App struct {
	Config   *config.Config
	Client   *cloud.Client
	Storage  *storage.Store
	Sessions *session.Store
	Chat     *chat.Orchestrator

	mu        sync.Mutex
	logCloser io.Closer
	watcher   *config.Watcher
}

// New opens storage and restores sessions, settings and the selected model.
// A corrupt stored value is logged and treated as absent.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if err := a.setupLogging(); err != nil {
		return nil, err
	}

	kv, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		a.closeLog()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.Storage = storage.NewStore(kv)

	a.Client = cloud.NewClient(cfg.API.Keys...).
		WithBaseURL(cfg.API.BaseURL).
		WithTimeout(cfg.API.Timeout()).
		WithReferer(cfg.API.Referer).
		WithTitle(cfg.API.Title)

	a.Sessions = session.NewStore(a.Storage)
	if err := a.Sessions.Load(ctx); err != nil {
		if !errors.Is(err, storage.ErrCorrupt) {
			a.Close()
			return nil, fmt.Errorf("failed to load sessions: %w", err)
		}
		logging.Warnf("SESSIONS_CORRUPT | error=%v (starting empty)", err)
	}

	settings, _, err := a.Storage.LoadSettings(ctx)
	if err != nil {
		logging.Warnf("SETTINGS_LOAD_FAILED | error=%v (using defaults)", err)
		settings = model.DefaultSettings()
	}

	modelID, err := a.Storage.LoadDefaultModel(ctx)
	if err != nil {
		logging.Warnf("MODEL_LOAD_FAILED | error=%v", err)
	}
	if modelID == "" {
		modelID = cfg.DefaultModel
	}

	a.Chat = chat.NewOrchestrator(a.Sessions, a.Client, a.Storage).
		WithModel(modelID).
		WithSettings(settings)

	logging.Infof("APP_READY | backend=%s sessions=%d model=%s keys=%d",
		cfg.Storage.Backend, a.Sessions.Len(), modelID, a.Client.Keys().Len())
	return a, nil
}

// Load reads the config and builds an App from it.
func Load(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

func (a *App) setupLogging() error {
	if lvl, err := logging.ParseLevel(a.Config.Logging.Level); err == nil {
		logging.SetLevel(lvl)
	}
	if a.Config.Logging.File == "" {
		return nil
	}
	closer, err := logging.OpenFile(a.Config.Logging.File)
	if err != nil {
		return err
	}
	a.logCloser = closer
	return nil
}

func (a *App) closeLog() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// EnsureSession returns the active session, creating one from the
// configured system prompt when none exists.
func (a *App) EnsureSession() *model.ChatSession {
	if s := a.Sessions.Active(); s != nil {
		return s
	}
	if list := a.Sessions.Sessions(); len(list) > 0 {
		a.Sessions.SelectSession(list[0].ID)
		return list[0]
	}
	return a.Sessions.CreateSession(a.Config.SystemPrompt)
}

// NewSession creates a session seeded with the configured system prompt.
func (a *App) NewSession() *model.ChatSession {
	return a.Sessions.CreateSession(a.Config.SystemPrompt)
}

// =============================================================================
// HOT RELOAD
// =============================================================================

// Watch reloads path on change and applies keys, timeout and model.
func (a *App) Watch(path string) error {
	w, err := config.NewWatcher(path, a.Apply)
	if err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}
	a.mu.Lock()
	a.watcher = w
	a.mu.Unlock()
	w.Start()
	return nil
}

// Apply pushes the reloadable parts of cfg into the running components.
// A changed default_model becomes the selected model.
func (a *App) Apply(cfg *config.Config) {
	a.mu.Lock()
	prev := a.Config
	a.Config = cfg
	a.mu.Unlock()

	a.Client.Keys().Reset(cfg.API.Keys)
	a.Client.SetTimeout(cfg.API.Timeout())
	if lvl, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		logging.SetLevel(lvl)
	}
	if prev == nil || prev.DefaultModel != cfg.DefaultModel {
		if err := a.Chat.SetModel(cfg.DefaultModel); err != nil {
			logging.Warnf("MODEL_APPLY_FAILED | error=%v", err)
		}
	}
}

// Close stops the watcher and releases storage and the log file.
func (a *App) Close() error {
	a.mu.Lock()
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	var errs []error
	if w != nil {
		errs = append(errs, w.Close())
	}
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	a.closeLog()
	return errors.Join(errs...)
}
