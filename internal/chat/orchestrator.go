// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/session"
)

// FallbackErrorText is shown when a failure carries no message.
const FallbackErrorText = "Failed to get a response. Please try again."

// persistTimeout bounds saves of the model and settings.
const persistTimeout = 10 * time.Second

// Completer produces a reply for a conversation history.
type Completer interface {
	Complete(ctx context.Context, modelID string, history []model.Message, streaming bool) (string, error)
}

// Preferences persists the selected model and settings.
type Preferences interface {
	SaveSettings(ctx context.Context, settings model.Settings) error
	SaveDefaultModel(ctx context.Context, id string) error
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// Rejection names the precondition a Send failed.
type Rejection string

const (
	RejectNone      Rejection = ""
	RejectEmpty     Rejection = "empty"
	RejectNoSession Rejection = "no_session"
	RejectBusy      Rejection = "busy"
)

// Result describes the outcome of one Send.
type Result struct {
	// Rejected is set when a precondition failed and nothing changed.
	Rejected Rejection

	// Reply is the appended assistant message (error-flagged on failure).
	Reply model.Message

	// Err is the completion failure, if any.
	Err error

	// Elapsed is the time spent in the Completer.
	Elapsed time.Duration
}

// OK reports whether the exchange ran and produced a reply.
func (r Result) OK() bool {
	return r.Rejected == RejectNone && r.Err == nil
}

// State is a snapshot of everything a view renders.
type State struct {
	Sessions      []*model.ChatSession `json:"sessions"`
	ActiveID      string               `json:"activeId"`
	Busy          bool                 `json:"busy"`
	LastError     string               `json:"lastError"`
	SelectedModel string               `json:"selectedModel"`
	Settings      model.Settings       `json:"settings"`
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs exchanges against a session store.
type Orchestrator struct {
	store     *session.Store
	completer Completer
	prefs     Preferences

	busy atomic.Bool

	mu        sync.RWMutex
	lastError string
	modelID   string
	settings  model.Settings

	obsMu     sync.Mutex
	observers []func()
}

// NewOrchestrator creates an orchestrator with the default model and
// settings. prefs may be nil.
func NewOrchestrator(store *session.Store, completer Completer, prefs Preferences) *Orchestrator {
	return &Orchestrator{
		store:     store,
		completer: completer,
		prefs:     prefs,
		modelID:   model.DefaultModel,
		settings:  model.DefaultSettings(),
	}
}

// WithModel sets the initial model without persisting it.
func (o *Orchestrator) WithModel(id string) *Orchestrator {
	if id = strings.TrimSpace(id); id != "" {
		o.modelID = id
	}
	return o
}

// WithSettings sets the initial settings without persisting them.
func (o *Orchestrator) WithSettings(s model.Settings) *Orchestrator {
	o.settings = s.Normalize()
	return o
}

// Store returns the session store.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// OnChange registers fn to run after orchestrator state changes (busy flag,
// last error, model, settings). Session changes are reported by the store.
func (o *Orchestrator) OnChange(fn func()) {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	o.observers = append(o.observers, fn)
}

func (o *Orchestrator) notify() {
	o.obsMu.Lock()
	observers := append([]func(){}, o.observers...)
	o.obsMu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// =============================================================================
// SEND
// =============================================================================

// Send runs one exchange for sessionID. Empty text, an unknown session or a
// send already in flight leave all state untouched and set Result.Rejected.
func (o *Orchestrator) Send(ctx context.Context, text, sessionID string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Rejected: RejectEmpty}
	}
	if _, ok := o.store.Session(sessionID); !ok {
		return Result{Rejected: RejectNoSession}
	}
	if !o.busy.CompareAndSwap(false, true) {
		logging.Debugf("SEND_REJECTED | reason=busy session=%s", sessionID)
		return Result{Rejected: RejectBusy}
	}
	defer func() {
		o.busy.Store(false)
		o.notify()
	}()

	// Deleted between the check and the flag flip.
	if !o.store.AppendMessage(sessionID, model.NewUserMessage(text)) {
		return Result{Rejected: RejectNoSession}
	}

	o.mu.Lock()
	o.lastError = ""
	modelID := o.modelID
	settings := o.settings
	o.mu.Unlock()
	o.notify()

	placeholder := false
	if settings.ShowTypingIndicator {
		placeholder = o.store.AppendMessage(sessionID, model.NewTransientMessage())
	}

	var history []model.Message
	if sess, ok := o.store.Session(sessionID); ok {
		history = sess.History()
	}

	logging.Infof("SEND_START | session=%s model=%s messages=%d stream=%t",
		sessionID, modelID, len(history), settings.StreamResponses)

	start := time.Now()
	reply, err := o.complete(ctx, modelID, history, settings.StreamResponses)
	elapsed := time.Since(start)

	if placeholder {
		o.store.RemoveTransient(sessionID)
	}

	if err != nil {
		msg := model.NewErrorMessage()
		o.store.AppendMessage(sessionID, msg)
		o.setLastError(errorText(err))
		logging.Warnf("SEND_FAILED | session=%s model=%s elapsed=%s error=%v",
			sessionID, modelID, elapsed.Round(time.Millisecond), err)
		return Result{Reply: msg, Err: err, Elapsed: elapsed}
	}

	msg := model.NewAssistantMessage(reply)
	o.store.AppendMessage(sessionID, msg)
	logging.Infof("SEND_OK | session=%s model=%s elapsed=%s chars=%d",
		sessionID, modelID, elapsed.Round(time.Millisecond), len(reply))
	return Result{Reply: msg, Elapsed: elapsed}
}

// complete calls the Completer and converts a panic into an error so the
// busy flag and placeholder are always cleaned up.
func (o *Orchestrator) complete(ctx context.Context, modelID string, history []model.Message, streaming bool) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion panicked: %v", r)
		}
	}()
	return o.completer.Complete(ctx, modelID, history, streaming)
}

// errorText is the user-facing reason recorded in the last-error slot.
func errorText(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackErrorText
}

// Clear resets the session to its system prompt. Unknown IDs are a no-op.
func (o *Orchestrator) Clear(sessionID string) bool {
	return o.store.ResetSession(sessionID)
}

// =============================================================================
// STATE ACCESS
// =============================================================================

// Busy reports whether an exchange is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// LastError returns the reason of the most recent failure, or "".
func (o *Orchestrator) LastError() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastError
}

// ClearError empties the last-error slot.
func (o *Orchestrator) ClearError() {
	o.setLastError("")
}

func (o *Orchestrator) setLastError(text string) {
	o.mu.Lock()
	o.lastError = text
	o.mu.Unlock()
	o.notify()
}

// SelectedModel returns the model used for the next exchange.
func (o *Orchestrator) SelectedModel() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.modelID
}

// SetModel selects the model for later exchanges and persists it.
func (o *Orchestrator) SetModel(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("model id is empty")
	}
	o.mu.Lock()
	o.modelID = id
	o.mu.Unlock()
	o.notify()

	logging.Infof("MODEL_SELECTED | model=%s", id)
	if o.prefs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.prefs.SaveDefaultModel(ctx, id); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// Settings returns the current settings.
func (o *Orchestrator) Settings() model.Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings
}

// UpdateSettings validates and replaces the settings wholesale, then
// persists them. Invalid settings leave the current ones in place.
func (o *Orchestrator) UpdateSettings(s model.Settings) error {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	o.settings = s
	o.mu.Unlock()
	o.notify()

	if o.prefs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.prefs.SaveSettings(ctx, s); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Snapshot returns the current view state.
func (o *Orchestrator) Snapshot() State {
	o.mu.RLock()
	st := State{
		LastError:     o.lastError,
		SelectedModel: o.modelID,
		Settings:      o.settings,
	}
	o.mu.RUnlock()

	st.Sessions = o.store.Sessions()
	st.ActiveID = o.store.ActiveID()
	st.Busy = o.busy.Load()
	return st
}
