// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/model"
)

// saveTimeout bounds one save of the session list.
const saveTimeout = 10 * time.Second

// Persistence loads and saves the whole session list.
type Persistence interface {
	LoadSessions(ctx context.Context) ([]*model.ChatSession, error)
	SaveSessions(ctx context.Context, sessions []*model.ChatSession) error
}

// =============================================================================
// SESSION STORE
// =============================================================================

// Store holds the session list (most recent first) and the active pointer.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions []*model.ChatSession
	activeID string

	persist Persistence
	now     func() time.Time

	obsMu     sync.Mutex
	observers []func()
}

// NewStore creates an empty store. A nil persist keeps state in memory only.
func NewStore(persist Persistence) *Store {
	return &Store{
		persist: persist,
		now:     time.Now,
	}
}

// Load replaces the in-memory list with the persisted one. The first
// session becomes active. On error the store is left empty.
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	sessions, err := s.persist.LoadSessions(ctx)

	s.mu.Lock()
	if err != nil {
		s.sessions, s.activeID = nil, ""
	} else {
		s.sessions = sessions
		s.activeID = ""
		if len(sessions) > 0 {
			s.activeID = sessions[0].ID
		}
	}
	s.mu.Unlock()

	s.notify()
	return err
}

// OnChange registers fn to run after every state change.
func (s *Store) OnChange(fn func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) notify() {
	s.obsMu.Lock()
	observers := append([]func(){}, s.observers...)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Sessions returns the session list, most recent first. The returned
// sessions are shared snapshots and must not be modified.
func (s *Store) Sessions() []*model.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ChatSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Session returns the session with id.
func (s *Store) Session(id string) (*model.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return nil, false
	}
	return s.sessions[i], true
}

// ActiveID returns the active session ID, or "" if none.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns the active session, or nil.
func (s *Store) Active() *model.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(s.activeID); i >= 0 {
		return s.sessions[i]
	}
	return nil
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateSession builds a session seeded with systemPrompt (or the default),
// prepends it and makes it active.
func (s *Store) CreateSession(systemPrompt string) *model.ChatSession {
	s.mu.Lock()
	sess := model.NewChatSession(systemPrompt)
	now := s.now()
	sess.LastUpdated = now
	// IDs come from the millisecond clock; bump on collision.
	for ms := now.UnixMilli(); ; ms++ {
		id := model.SessionIDAt(time.UnixMilli(ms))
		if s.indexLocked(id) < 0 {
			sess.ID = id
			break
		}
	}
	s.sessions = append([]*model.ChatSession{sess}, s.sessions...)
	s.activeID = sess.ID
	s.saveLocked()
	s.mu.Unlock()

	logging.Debugf("SESSION_CREATED | id=%s", sess.ID)
	s.notify()
	return sess
}

// SelectSession makes id the active session. Unknown IDs are ignored.
func (s *Store) SelectSession(id string) bool {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return false
	}
	s.activeID = id
	s.mu.Unlock()

	s.notify()
	return true
}

// AppendMessage appends msg to the session and updates LastUpdated.
// A second transient message replaces the first so a session never holds
// more than one. Unknown IDs are a no-op.
func (s *Store) AppendMessage(sessionID string, msg model.Message) bool {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if msg.IsTransient {
		msg.Role = model.RoleAssistant
	}
	return s.update(sessionID, func(sess *model.ChatSession) bool {
		msgs := make([]model.Message, 0, len(sess.Messages)+1)
		for _, m := range sess.Messages {
			if msg.IsTransient && m.IsTransient {
				continue
			}
			msgs = append(msgs, m)
		}
		sess.Messages = append(msgs, msg)
		return true
	})
}

// RemoveTransient drops any transient message from the session. It reports
// whether the session exists; calling it with no transient present is a
// no-op.
func (s *Store) RemoveTransient(sessionID string) bool {
	return s.update(sessionID, func(sess *model.ChatSession) bool {
		if sess.TransientCount() == 0 {
			return false
		}
		sess.Messages = sess.History()
		return true
	})
}

// ResetSession replaces the messages with one fresh system message built
// from the session's stored prompt.
func (s *Store) ResetSession(sessionID string) bool {
	return s.update(sessionID, func(sess *model.ChatSession) bool {
		prompt := sess.SystemPrompt
		if prompt == "" {
			prompt = model.DefaultSystemPrompt
		}
		sess.Messages = []model.Message{model.NewSystemMessage(prompt)}
		return true
	})
}

// RenameSession sets a user-chosen title. Blank titles are ignored.
func (s *Store) RenameSession(sessionID, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	return s.update(sessionID, func(sess *model.ChatSession) bool {
		sess.Title = title
		return true
	})
}

// DeleteSession removes the session. If it was active, the first remaining
// session becomes active.
func (s *Store) DeleteSession(sessionID string) bool {
	s.mu.Lock()
	i := s.indexLocked(sessionID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	sessions := make([]*model.ChatSession, 0, len(s.sessions)-1)
	sessions = append(sessions, s.sessions[:i]...)
	s.sessions = append(sessions, s.sessions[i+1:]...)
	if s.activeID == sessionID {
		s.activeID = ""
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		}
	}
	s.saveLocked()
	s.mu.Unlock()

	logging.Debugf("SESSION_DELETED | id=%s", sessionID)
	s.notify()
	return true
}

// update applies fn to a copy of the session and swaps the copy in. The
// slice of sessions is copied too so snapshots from Sessions stay intact.
// fn returns false to signal nothing changed. The result reports whether
// the session exists.
func (s *Store) update(sessionID string, fn func(sess *model.ChatSession) bool) bool {
	s.mu.Lock()
	i := s.indexLocked(sessionID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}

	updated := *s.sessions[i]
	if !fn(&updated) {
		s.mu.Unlock()
		return true
	}
	updated.LastUpdated = s.now()

	sessions := make([]*model.ChatSession, len(s.sessions))
	copy(sessions, s.sessions)
	sessions[i] = &updated
	s.sessions = sessions
	s.saveLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// saveLocked writes the current list. Failures are logged and do not roll
// back the in-memory state.
func (s *Store) saveLocked() {
	if s.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.persist.SaveSessions(ctx, s.sessions); err != nil {
		logging.Errorf("SESSION_SAVE_FAILED | sessions=%d error=%v", len(s.sessions), err)
	}
}
