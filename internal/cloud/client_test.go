// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/orchat/internal/model"
)

func testHistory() []model.Message {
	return []model.Message{
		model.NewSystemMessage(model.DefaultSystemPrompt),
		model.NewUserMessage("hello"),
	}
}

// =============================================================================
// KEY ROTATION TESTS
// =============================================================================

func TestKeyPool_CyclicOrder(t *testing.T) {
	pool := NewKeyPool("k0", " ", "k1", "k2")
	require.Equal(t, 3, pool.Len())

	want := []int{0, 1, 2, 0, 1, 2, 0}
	for i, w := range want {
		key, idx, err := pool.Next()
		require.NoError(t, err)
		assert.Equal(t, w, idx, "call %d", i)
		assert.Equal(t, []string{"k0", "k1", "k2"}[w], key)
	}
}

func TestKeyPool_Empty(t *testing.T) {
	_, _, err := NewKeyPool().Next()
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, "", NewKeyPool().Peek())
}

func TestKeyPool_ResetRewinds(t *testing.T) {
	pool := NewKeyPool("a", "b")
	pool.Next()
	pool.Reset([]string{"x", "y", "z"})
	key, idx, _ := pool.Next()
	assert.Equal(t, "x", key)
	assert.Equal(t, 0, idx)
}

func TestKeyPool_FingerprintsHideKeys(t *testing.T) {
	pool := NewKeyPool("sk-or-secret-one", "sk-or-secret-two")
	fps := pool.Fingerprints()
	require.Len(t, fps, 2)
	for _, fp := range fps {
		assert.Len(t, fp, 8)
		assert.NotContains(t, fp, "secret")
	}
	assert.NotEqual(t, fps[0], fps[1])
}

func TestComplete_RotatesKeysAcrossCalls(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		mu.Unlock()
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewClient("k0", "k1", "k2").WithBaseURL(server.URL)
	for i := 0; i < 7; i++ {
		_, err := client.Complete(context.Background(), "m", testHistory(), false)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"k0", "k1", "k2", "k0", "k1", "k2", "k0"}, seen)
}

// =============================================================================
// REQUEST SHAPE TESTS
// =============================================================================

func TestComplete_RequestShape(t *testing.T) {
	var got ChatRequest
	var headers http.Header
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, headers = r.Method, r.URL.Path, r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"Hello!"}}]}`))
	}))
	defer server.Close()

	client := NewClient("sk-test").
		WithBaseURL(server.URL + "/").
		WithReferer("https://example.test").
		WithTitle("Test Chat")

	history := append(testHistory(), model.NewTransientMessage())
	text, err := client.Complete(context.Background(), "deepseek/deepseek-r1:free", history, false)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", text)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/chat/completions", path)
	assert.Equal(t, "Bearer sk-test", headers.Get("Authorization"))
	assert.Equal(t, "https://example.test", headers.Get("HTTP-Referer"))
	assert.Equal(t, "Test Chat", headers.Get("X-Title"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))

	assert.Equal(t, "deepseek/deepseek-r1:free", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, []ChatMessage{
		{Role: "system", Content: model.DefaultSystemPrompt},
		{Role: "user", Content: "hello"},
	}, got.Messages)
}

func TestComplete_NonStreamingFallback(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"content":""}}]}`},
		{"no message", `{"choices":[{}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			text, err := NewClient("k").WithBaseURL(server.URL).Complete(context.Background(), "m", testHistory(), false)
			require.NoError(t, err)
			assert.Equal(t, model.NoResponseReply, text)
		})
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	_, err := NewClient().Complete(context.Background(), "m", testHistory(), false)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

// =============================================================================
// ERROR RESPONSE TESTS
// =============================================================================

func TestComplete_ErrorResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantIs      error
	}{
		{"top-level message", 401, `{"message":"Invalid API key"}`, "Invalid API key", ErrAuthFailed},
		{"nested error message", 429, `{"error":{"code":429,"message":"Rate limit exceeded"}}`, "Rate limit exceeded", ErrRateLimited},
		{"payment required", 402, `{"error":{"message":"Insufficient credits"}}`, "Insufficient credits", ErrInsufficientCredits},
		{"unknown model", 404, `{}`, GenericFailureMessage, ErrModelNotFound},
		{"not json", 502, `<html>Bad Gateway</html>`, GenericFailureMessage, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			text, err := NewClient("k").WithBaseURL(server.URL).Complete(context.Background(), "m", testHistory(), true)
			require.Error(t, err)
			assert.Empty(t, text)
			assert.Equal(t, tc.wantMessage, err.Error())

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.Status)
			if tc.wantIs != nil {
				assert.ErrorIs(t, err, tc.wantIs)
			}
		})
	}
}

func TestComplete_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient("k").WithBaseURL(server.URL).WithTimeout(50 * time.Millisecond)
	start := time.Now()
	_, err := client.Complete(context.Background(), "m", testHistory(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestComplete_CallerCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	text, err := NewClient("k").WithBaseURL(server.URL).Complete(ctx, "m", testHistory(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, text, "no partial text on failure")
}

// =============================================================================
// MODEL LIST TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[
			{"id":"openrouter/auto","object":"model"},
			{"id":"deepseek/deepseek-r1:free","object":"model"}
		]}`))
	}))
	defer server.Close()

	client := NewClient("k0", "k1").WithBaseURL(server.URL)
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "openrouter/auto", models[0].ID)
	assert.True(t, models[0].Remote)
	assert.Equal(t, "Bearer k0", auth)

	// Listing does not advance the rotation.
	key, _, _ := client.Keys().Next()
	assert.Equal(t, "k0", key)

	catalog, err := client.Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog, len(model.BuiltinModels())+1)
}

func TestCatalog_RemoteFailureKeepsBuiltin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	catalog, err := NewClient("k").WithBaseURL(server.URL).Catalog(context.Background())
	assert.Error(t, err)
	assert.Equal(t, model.BuiltinModels(), catalog)
}
