// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// KeyPool hands out API keys in fixed cyclic order. The cursor advances on
// every call to Next and is shared by all requests made through the pool.
type KeyPool struct {
	mu   sync.Mutex
	keys []string
	next int
}

// NewKeyPool creates a pool over keys. Blank entries are dropped; order is
// preserved.
func NewKeyPool(keys ...string) *KeyPool {
	p := &KeyPool{}
	p.Reset(keys)
	return p
}

// Reset replaces the keys and rewinds the cursor to the first key.
func (p *KeyPool) Reset(keys []string) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = cleaned
	p.next = 0
}

// Next returns the key at the cursor and advances it.
func (p *KeyPool) Next() (string, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", -1, ErrNotConfigured
	}
	i := p.next
	p.next = (p.next + 1) % len(p.keys)
	return p.keys[i], i, nil
}

// Peek returns the key at the cursor without advancing, or "".
func (p *KeyPool) Peek() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return ""
	}
	return p.keys[p.next]
}

// Len returns the number of keys in the pool.
func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Fingerprints returns a short SHA-256 fingerprint for every key, in order.
// SECURITY: Never exposes key fragments.
func (p *KeyPool) Fingerprints() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.keys))
	for i, k := range p.keys {
		out[i] = fingerprint(k)
	}
	return out
}

func fingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}
