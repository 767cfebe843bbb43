// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/jeranaias/orchat/internal/logging"
)

// STREAMING: Line-oriented SSE decoding, malformed frames are skipped

// MaxFrameSize is the largest single "data:" line accepted (64KB).
const MaxFrameSize = 64 * 1024

var doneMarker = []byte("[DONE]")

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is one decoded frame of a streaming response.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// =============================================================================
// FRAME READER
// =============================================================================

// FrameReader yields the payload of each "data:" line of an event stream.
// Blank lines, comments (":") and other fields (event:, id:, retry:) are
// ignored.
type FrameReader struct {
	reader *bufio.Reader
}

// NewFrameReader creates a frame reader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{reader: bufio.NewReader(r)}
}

// errFrameTooLarge marks a line longer than MaxFrameSize.
var errFrameTooLarge = errors.New("frame exceeds maximum size")

// Next returns the next data payload. It returns io.EOF when the stream ends
// and errFrameTooLarge (recoverable) for oversized lines.
func (f *FrameReader) Next() ([]byte, error) {
	for {
		line, err := f.readLine()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if len(line) == 0 && err == io.EOF {
			return nil, io.EOF
		}

		line = bytes.TrimRight(line, "\r\n")
		if bytes.HasPrefix(line, []byte("data:")) {
			data := line[5:]
			// A single leading space is part of the field separator.
			if len(data) > 0 && data[0] == ' ' {
				data = data[1:]
			}
			return data, nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
	}
}

// readLine reads through the next '\n'. Lines over MaxFrameSize are consumed
// and reported as errFrameTooLarge.
func (f *FrameReader) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := f.reader.ReadSlice('\n')
		if len(buf)+len(chunk) <= MaxFrameSize {
			buf = append(buf, chunk...)
		} else {
			buf = nil
			if err == nil {
				return nil, errFrameTooLarge
			}
			if err == bufio.ErrBufferFull {
				if drainErr := f.drainLine(); drainErr != nil && drainErr != io.EOF {
					return nil, drainErr
				}
				return nil, errFrameTooLarge
			}
			return nil, err
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return buf, err
	}
}

func (f *FrameReader) drainLine() error {
	for {
		_, err := f.reader.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			continue
		}
		return err
	}
}

// =============================================================================
// STREAM DECODING
// =============================================================================

// DecodeStream reads an event stream to its end and returns the
// concatenated delta content of every well-formed frame, in arrival order.
// "[DONE]" frames are skipped; malformed frames are logged and skipped.
// Any read error (including context cancellation) fails the whole call.
func DecodeStream(ctx context.Context, body io.Reader) (string, error) {
	var acc strings.Builder
	err := ForEachDelta(ctx, body, func(delta string) {
		acc.WriteString(delta)
	})
	if err != nil {
		return "", err
	}
	return acc.String(), nil
}

// ForEachDelta calls fn with the delta content of each well-formed frame.
func ForEachDelta(ctx context.Context, body io.Reader, fn func(delta string)) error {
	frames := NewFrameReader(body)
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := frames.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, errFrameTooLarge) {
			skipped++
			logging.Warnf("STREAM_FRAME_SKIPPED | reason=too_large limit=%d", MaxFrameSize)
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		if bytes.Equal(bytes.TrimSpace(data), doneMarker) {
			continue
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			skipped++
			logging.Warnf("STREAM_FRAME_SKIPPED | reason=malformed error=%q", err.Error())
			continue
		}
		if content := chunk.GetContent(); content != "" {
			fn(content)
		}
	}
	if skipped > 0 {
		logging.Debugf("STREAM_COMPLETE | skipped_frames=%d", skipped)
	}
	return nil
}
