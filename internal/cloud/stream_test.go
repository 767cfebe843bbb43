// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// STREAM DECODING TESTS
// =============================================================================

func TestDecodeStream(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "two deltas and done",
			body: "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n" +
				"data: [DONE]\n",
			want: "Hi there",
		},
		{
			name: "malformed frame skipped",
			body: "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
				"data: {not json\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n",
			want: "ab",
		},
		{
			name: "comments, role-only and empty deltas ignored",
			body: ": OPENROUTER PROCESSING\n\n" +
				"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
				"event: message\n" +
				"data: {\"choices\":[]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n",
			want: "x",
		},
		{
			name: "crlf line endings and no space after colon",
			body: "data:{\"choices\":[{\"delta\":{\"content\":\"1\"}}]}\r\n\r\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"2\"}}]}\r\n",
			want: "12",
		},
		{
			name: "frames after done are still read",
			body: "data: [DONE]\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n",
			want: "late",
		},
		{
			name: "final frame without trailing newline",
			body: "data: {\"choices\":[{\"delta\":{\"content\":\"end\"}}]}",
			want: "end",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeStream(context.Background(), strings.NewReader(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeStream_OversizedFrameSkipped(t *testing.T) {
	big := "data: {\"choices\":[{\"delta\":{\"content\":\"" + strings.Repeat("z", MaxFrameSize) + "\"}}]}\n"
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" + big +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"

	got, err := DecodeStream(context.Background(), strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "ab", got)
}

type failingReader struct {
	data string
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.ErrUnexpectedEOF
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestDecodeStream_ReadErrorFails(t *testing.T) {
	r := &failingReader{data: "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"}
	got, err := DecodeStream(context.Background(), r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Empty(t, got)
}

func TestDecodeStream_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DecodeStream(ctx, strings.NewReader("data: [DONE]\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForEachDelta_ArrivalOrder(t *testing.T) {
	body := ""
	for _, s := range []string{"a", "b", "c", "d"} {
		body += "data: {\"choices\":[{\"delta\":{\"content\":\"" + s + "\"}}]}\n\n"
	}
	var got []string
	err := ForEachDelta(context.Background(), strings.NewReader(body), func(d string) {
		got = append(got, d)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

// =============================================================================
// STREAMING CLIENT TESTS
// =============================================================================

func TestComplete_Streaming(t *testing.T) {
	var stream bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			stream = req.Stream
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range []string{
			"data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n",
			"data: [DONE]\n",
		} {
			w.Write([]byte(frame))
			flusher.Flush()
		}
	}))
	defer server.Close()

	text, err := NewClient("k").WithBaseURL(server.URL).Complete(context.Background(), "m", testHistory(), true)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
	assert.True(t, stream)
}

func TestComplete_StreamAbortedMidway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n"))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	text, err := NewClient("k").WithBaseURL(server.URL).Complete(context.Background(), "m", testHistory(), true)
	require.Error(t, err)
	assert.Empty(t, text)
}
