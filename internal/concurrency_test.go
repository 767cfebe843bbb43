// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Race detection tests for the components shared between front ends.
//
// Run with: go test -race -v ./internal/...
package internal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/orchat/internal/chat"
	"github.com/jeranaias/orchat/internal/cloud"
	"github.com/jeranaias/orchat/internal/config"
	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/session"
)

// =============================================================================
// TEST CONFIGURATION
// =============================================================================

const (
	// Number of concurrent goroutines for race tests
	raceConcurrency = 50
	// Number of iterations per goroutine
	raceIterations = 20
)

// slowCompleter blocks until released and counts calls.
type slowCompleter struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowCompleter) Complete(ctx context.Context, modelID string, history []model.Message, streaming bool) (string, error) {
	s.calls.Add(1)
	select {
	case <-s.release:
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// =============================================================================
// CONFIG CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_ConfigGlobalAccess reads and replaces the global config
// from many goroutines.
func TestConcurrency_ConfigGlobalAccess(t *testing.T) {
	t.Setenv("ORCHAT_HOME", t.TempDir())
	config.ResetGlobalForTesting()
	defer config.ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < raceIterations; j++ {
				if cfg := config.Global(); cfg != nil {
					_ = cfg.DefaultModel
					_ = cfg.API.Timeout()
				}
			}
		}()
		go func(idx int) {
			defer wg.Done()
			cfg := config.Default()
			cfg.DefaultModel = fmt.Sprintf("vendor/model-%d:free", idx)
			config.SetGlobal(cfg)
		}(i)
	}
	wg.Wait()
	assert.NotNil(t, config.Global())
}

// =============================================================================
// KEY POOL CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_KeyPoolRotation checks that concurrent callers still see
// every key an equal number of times.
func TestConcurrency_KeyPoolRotation(t *testing.T) {
	pool := cloud.NewKeyPool("a", "b", "c")

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 30; j++ {
				key, _, err := pool.Next()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				counts[key]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	total := raceConcurrency * 30
	for _, k := range []string{"a", "b", "c"} {
		assert.Equal(t, total/3, counts[k], "key %s", k)
	}
}

// =============================================================================
// SESSION STORE CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_StoreMutations mixes creates, appends, renames, selects
// and reads.
func TestConcurrency_StoreMutations(t *testing.T) {
	store := session.NewStore(nil)
	root := store.CreateSession("")

	var wg sync.WaitGroup
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < raceIterations; j++ {
				switch (idx + j) % 5 {
				case 0:
					store.CreateSession("")
				case 1:
					store.AppendMessage(root.ID, model.NewUserMessage("hi"))
				case 2:
					store.RenameSession(root.ID, fmt.Sprintf("title %d", idx))
				case 3:
					store.SelectSession(root.ID)
				default:
					for _, s := range store.Sessions() {
						_ = s.MessageCount()
					}
					_ = store.Active()
				}
			}
		}(i)
	}
	wg.Wait()

	got, ok := store.Session(root.ID)
	require.True(t, ok)
	assert.Equal(t, 1+raceConcurrency*raceIterations/5, len(got.Messages))

	seen := map[string]bool{}
	for _, s := range store.Sessions() {
		assert.False(t, seen[s.ID], "duplicate session id %s", s.ID)
		seen[s.ID] = true
	}
}

// =============================================================================
// ORCHESTRATOR CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_SingleSendInFlight fires many sends at once. Exactly one
// runs; the rest are rejected as busy without touching the session.
func TestConcurrency_SingleSendInFlight(t *testing.T) {
	store := session.NewStore(nil)
	sess := store.CreateSession("")
	completer := &slowCompleter{release: make(chan struct{})}
	orch := chat.NewOrchestrator(store, completer, nil)

	results := make(chan chat.Result, raceConcurrency)
	var wg sync.WaitGroup
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- orch.Send(context.Background(), "hello", sess.ID)
		}()
	}

	require.Eventually(t, func() bool { return completer.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(completer.release)
	wg.Wait()
	close(results)

	var ok, busy int
	for res := range results {
		switch {
		case res.OK():
			ok++
		case res.Rejected == chat.RejectBusy:
			busy++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, raceConcurrency-1, busy)
	assert.Equal(t, int32(1), completer.calls.Load())
	assert.False(t, orch.Busy())

	got, _ := store.Session(sess.ID)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, 0, got.TransientCount())
}
