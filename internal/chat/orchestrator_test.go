// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/orchat/internal/cloud"
	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/session"
	"github.com/jeranaias/orchat/internal/storage"
)

// fakeCompleter returns a canned reply and records each call.
type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []fakeCall

	// block, if set, is waited on before returning.
	block chan struct{}
	// started is closed on the first call.
	started chan struct{}
	// during runs inside Complete before it returns.
	during func()
}

type fakeCall struct {
	model     string
	history   []model.Message
	streaming bool
}

func (f *fakeCompleter) Complete(ctx context.Context, modelID string, history []model.Message, streaming bool) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{model: modelID, history: history, streaming: streaming})
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	f.mu.Unlock()

	if f.during != nil {
		f.during()
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeCompleter) lastCall() fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestOrchestrator(c Completer) (*Orchestrator, *model.ChatSession) {
	store := session.NewStore(nil)
	sess := store.CreateSession(model.DefaultSystemPrompt)
	return NewOrchestrator(store, c, nil), sess
}

func messages(t *testing.T, o *Orchestrator, id string) []model.Message {
	t.Helper()
	sess, ok := o.Store().Session(id)
	require.True(t, ok)
	return sess.Messages
}

// =============================================================================
// SUCCESS PATH
// =============================================================================

func TestSend_ConcreteScenario(t *testing.T) {
	fc := &fakeCompleter{reply: "Hello!"}
	store := session.NewStore(nil)
	o := NewOrchestrator(store, fc, nil)
	s := o.Settings()
	s.StreamResponses = false
	require.NoError(t, o.UpdateSettings(s))

	sess := store.CreateSession("You are a helpful assistant.")
	res := o.Send(context.Background(), "hello", sess.ID)
	require.True(t, res.OK())

	msgs := messages(t, o, sess.ID)
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "You are a helpful assistant.", msgs[0].Content)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "Hello!", msgs[2].Content)
	assert.False(t, msgs[2].IsError)

	assert.False(t, o.Busy())
	assert.Empty(t, o.LastError())
	assert.False(t, fc.lastCall().streaming)
}

func TestSend_HistoryExcludesPlaceholder(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o, sess := newTestOrchestrator(fc)
	require.True(t, o.Settings().ShowTypingIndicator)

	res := o.Send(context.Background(), "hi", sess.ID)
	require.True(t, res.OK())

	call := fc.lastCall()
	require.Len(t, call.history, 2)
	assert.Equal(t, "hi", call.history[1].Content)
	for _, m := range call.history {
		assert.False(t, m.IsTransient)
	}
	assert.Equal(t, model.DefaultModel, call.model)
	assert.True(t, call.streaming)

	msgs := messages(t, o, sess.ID)
	require.Len(t, msgs, 3)
	assert.Equal(t, "ok", msgs[2].Content)
	assert.False(t, msgs[2].IsTransient)
}

func TestSend_PlaceholderVisibleDuringExchange(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o, sess := newTestOrchestrator(fc)

	var during []model.Message
	var busyDuring bool
	fc.during = func() {
		during = messages(t, o, sess.ID)
		busyDuring = o.Busy()
	}

	o.Send(context.Background(), "hi", sess.ID)

	require.Len(t, during, 3)
	last := during[2]
	assert.True(t, last.IsTransient)
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, model.TransientContent, last.Content)
	assert.True(t, busyDuring)
}

func TestSend_NoPlaceholderWhenIndicatorOff(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o, sess := newTestOrchestrator(fc)
	s := o.Settings()
	s.ShowTypingIndicator = false
	require.NoError(t, o.UpdateSettings(s))

	var during []model.Message
	fc.during = func() { during = messages(t, o, sess.ID) }

	o.Send(context.Background(), "hi", sess.ID)
	require.Len(t, during, 2)
	assert.False(t, during[1].IsTransient)
}

func TestSend_UsesSelectedModel(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o, sess := newTestOrchestrator(fc)
	require.NoError(t, o.SetModel("qwen/qwen3-8b:free"))

	o.Send(context.Background(), "hi", sess.ID)
	assert.Equal(t, "qwen/qwen3-8b:free", fc.lastCall().model)
}

// =============================================================================
// FAILURE PATH
// =============================================================================

func TestSend_FailureAppendsErrorRecord(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("Rate limit exceeded")}
	o, sess := newTestOrchestrator(fc)

	res := o.Send(context.Background(), "hi", sess.ID)
	require.Error(t, res.Err)
	assert.False(t, res.OK())

	msgs := messages(t, o, sess.ID)
	require.Len(t, msgs, 3)
	last := msgs[2]
	assert.True(t, last.IsError)
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, model.ErrorReply, last.Content)
	for _, m := range msgs {
		assert.False(t, m.IsTransient)
	}

	assert.False(t, o.Busy())
	assert.Equal(t, "Rate limit exceeded", o.LastError())
}

func TestSend_APIErrorMessageSurfaces(t *testing.T) {
	fc := &fakeCompleter{err: &cloud.APIError{Status: 402, Message: "Insufficient credits"}}
	o, sess := newTestOrchestrator(fc)

	res := o.Send(context.Background(), "hi", sess.ID)
	assert.ErrorIs(t, res.Err, cloud.ErrInsufficientCredits)
	assert.Equal(t, "Insufficient credits", o.LastError())
}

func TestSend_EmptyErrorUsesFallbackText(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("  ")}
	o, sess := newTestOrchestrator(fc)

	o.Send(context.Background(), "hi", sess.ID)
	assert.Equal(t, FallbackErrorText, o.LastError())
}

func TestSend_PanicIsRecovered(t *testing.T) {
	o, sess := newTestOrchestrator(&fakeCompleter{})
	o.completer = panicCompleter{}

	res := o.Send(context.Background(), "hi", sess.ID)
	require.Error(t, res.Err)
	assert.False(t, o.Busy())
	msgs := messages(t, o, sess.ID)
	assert.True(t, msgs[len(msgs)-1].IsError)
}

type panicCompleter struct{}

func (panicCompleter) Complete(context.Context, string, []model.Message, bool) (string, error) {
	panic("boom")
}

func TestSend_SuccessClearsPreviousError(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("down")}
	o, sess := newTestOrchestrator(fc)
	o.Send(context.Background(), "one", sess.ID)
	require.Equal(t, "down", o.LastError())

	fc.err = nil
	fc.reply = "up"
	o.Send(context.Background(), "two", sess.ID)
	assert.Empty(t, o.LastError())
}

func TestSend_CancelledContext(t *testing.T) {
	fc := &fakeCompleter{block: make(chan struct{})}
	o, sess := newTestOrchestrator(fc)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := o.Send(ctx, "hi", sess.ID)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.False(t, o.Busy())
	msgs := messages(t, o, sess.ID)
	assert.True(t, msgs[len(msgs)-1].IsError)
}

// =============================================================================
// REJECTIONS
// =============================================================================

func TestSend_Rejections(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o, sess := newTestOrchestrator(fc)

	tests := []struct {
		name string
		text string
		id   string
		want Rejection
	}{
		{"empty", "", sess.ID, RejectEmpty},
		{"whitespace", " \n\t", sess.ID, RejectEmpty},
		{"unknown session", "hi", "missing", RejectNoSession},
		{"no session", "hi", "", RejectNoSession},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := o.Send(context.Background(), tc.text, tc.id)
			assert.Equal(t, tc.want, res.Rejected)
		})
	}

	assert.Len(t, messages(t, o, sess.ID), 1)
	assert.Empty(t, fc.calls)
}

func TestSend_RejectsWhileBusy(t *testing.T) {
	fc := &fakeCompleter{reply: "first", block: make(chan struct{}), started: make(chan struct{})}
	o, sess := newTestOrchestrator(fc)
	other := o.Store().CreateSession("")
	started := fc.started

	done := make(chan Result)
	go func() { done <- o.Send(context.Background(), "one", sess.ID) }()
	<-started

	assert.True(t, o.Busy())
	// Busy is global, not per session.
	res := o.Send(context.Background(), "two", other.ID)
	assert.Equal(t, RejectBusy, res.Rejected)
	assert.Len(t, messages(t, o, other.ID), 1)

	close(fc.block)
	first := <-done
	assert.True(t, first.OK())
	assert.False(t, o.Busy())
	assert.Len(t, fc.calls, 1)
}

// =============================================================================
// CLEAR / SETTINGS / SNAPSHOT
// =============================================================================

func TestClear(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o, sess := newTestOrchestrator(fc)
	o.Send(context.Background(), "hi", sess.ID)

	assert.True(t, o.Clear(sess.ID))
	msgs := messages(t, o, sess.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DefaultSystemPrompt, msgs[0].Content)

	assert.False(t, o.Clear("missing"))
}

func TestUpdateSettings_RejectsInvalid(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeCompleter{})
	s := o.Settings()
	s.Theme = "neon"

	require.Error(t, o.UpdateSettings(s))
	assert.Equal(t, model.ThemeSystem, o.Settings().Theme)
}

func TestSetModel_RejectsEmpty(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeCompleter{})
	require.Error(t, o.SetModel("  "))
	assert.Equal(t, model.DefaultModel, o.SelectedModel())
}

func TestPreferencesPersisted(t *testing.T) {
	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)
	prefs := storage.NewStore(kv)
	ctx := context.Background()

	o := NewOrchestrator(session.NewStore(prefs), &fakeCompleter{}, prefs)
	require.NoError(t, o.SetModel("google/gemma-3-4b-it:free"))
	s := o.Settings()
	s.StreamResponses = false
	s.Theme = model.ThemeDark
	require.NoError(t, o.UpdateSettings(s))

	id, err := prefs.LoadDefaultModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "google/gemma-3-4b-it:free", id)

	loaded, ok, err := prefs.LoadSettings(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, loaded.StreamResponses)
	assert.Equal(t, model.ThemeDark, loaded.Theme)
}

func TestSnapshot(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("nope")}
	o, sess := newTestOrchestrator(fc)
	o.Send(context.Background(), "hi", sess.ID)

	st := o.Snapshot()
	assert.Equal(t, sess.ID, st.ActiveID)
	assert.Len(t, st.Sessions, 1)
	assert.False(t, st.Busy)
	assert.Equal(t, "nope", st.LastError)
	assert.Equal(t, model.DefaultModel, st.SelectedModel)
}

func TestOnChangeFiresForBusyTransitions(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o, sess := newTestOrchestrator(fc)

	var mu sync.Mutex
	var seen []bool
	o.OnChange(func() {
		mu.Lock()
		seen = append(seen, o.Busy())
		mu.Unlock()
	})
	o.Send(context.Background(), "hi", sess.ID)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.True(t, seen[0], "first notification should report busy")
	assert.False(t, seen[len(seen)-1], "last notification should report idle")
}
