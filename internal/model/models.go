// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a model offered in the selector.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Provider is the vendor prefix of the ID (e.g. "deepseek")
	Provider string `json:"provider"`

	// Free is true for ":free" variants
	Free bool `json:"free"`

	// ContextLength is the context window reported by the API (0 if unknown)
	ContextLength int `json:"context_length,omitempty"`

	// Remote is true when the entry came from the API rather than the built-in list
	Remote bool `json:"remote,omitempty"`
}

// NewModelInfo derives display metadata from an OpenRouter model ID.
func NewModelInfo(id string) ModelInfo {
	info := ModelInfo{ID: id, Name: id}
	base := id
	if i := strings.Index(id, "/"); i > 0 {
		info.Provider = id[:i]
		base = id[i+1:]
	}
	if strings.HasSuffix(base, ":free") {
		info.Free = true
		base = strings.TrimSuffix(base, ":free")
	}
	info.Name = base
	return info
}

// Label returns "name (provider)" for list displays.
func (m ModelInfo) Label() string {
	if m.Provider == "" {
		return m.Name
	}
	return m.Name + " (" + m.Provider + ")"
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// freeModelIDs is the built-in selector list of free OpenRouter models.
var freeModelIDs = []string{
	"deepseek/deepseek-prover-v2:free",
	"tngtech/deepseek-r1t-chimera:free",
	"microsoft/mai-ds-r1:free",
	"deepseek/deepseek-v3-base:free",
	"deepseek/deepseek-chat-v3-0324:free",
	"deepseek/deepseek-r1-zero:free",
	"deepseek/deepseek-r1:free",
	"deepseek/deepseek-chat:free",
	"moonshotai/kimi-vl-a3b-thinking:free",
	"nvidia/llama-3.3-nemotron-super-49b-v1:free",
	"nvidia/llama-3.1-nemotron-ultra-253b-v1:free",
	"google/gemma-3-4b-it:free",
	"google/gemma-3-12b-it:free",
	"nousresearch/deephermes-3-llama-3-8b-preview:free",
	"qwen/qwen2.5-vl-72b-instruct:free",
	"meta-llama/llama-3.3-70b-instruct:free",
	"meta-llama/llama-3.2-11b-vision-instruct:free",
	"meta-llama/llama-3.1-8b-instruct:free",
	"meta-llama/llama-3.2-1b-instruct:free",
	"qwen/qwen3-4b:free",
	"meta-llama/llama-4-maverick:free",
	"mistralai/mistral-nemo:free",
	"agentica-org/deepcoder-14b-preview:free",
	"mistralai/mistral-small-3.1-24b-instruct:free",
	"google/gemma-3-27b-it:free",
	"qwen/qwen2.5-vl-3b-instruct:free",
	"deepseek/deepseek-r1-distill-qwen-14b:free",
	"qwen/qwen-2.5-vl-7b-instruct:free",
	"meta-llama/llama-3.1-405b:free",
	"qwen/qwen3-30b-a3b:free",
	"qwen/qwen3-8b:free",
	"qwen/qwen3-14b:free",
	"qwen/qwen3-32b:free",
	"qwen/qwen3-235b-a22b:free",
	"qwen/qwq-32b:free",
	"nousresearch/deephermes-3-mistral-24b-preview:free",
	"microsoft/phi-4-reasoning-plus:free",
	"microsoft/phi-4-reasoning:free",
	"thudm/glm-z1-32b:free",
	"thudm/glm-4-32b:free",
	"shisa-ai/shisa-v2-llama3.3-70b:free",
	"arliai/qwq-32b-arliai-rpr-v1:free",
	"bytedance-research/ui-tars-72b:free",
	"featherless/qwerky-72b:free",
	"open-r1/olympiccoder-32b:free",
	"google/gemma-3-1b-it:free",
	"rekaai/reka-flash-3:free",
	"cognitivecomputations/dolphin3.0-r1-mistral-24b:free",
	"cognitivecomputations/dolphin3.0-mistral-24b:free",
	"mistralai/mistral-small-24b-instruct-2501:free",
	"qwen/qwen-2.5-coder-32b-instruct:free",
	"qwen/qwen-2.5-7b-instruct:free",
	"qwen/qwen-2.5-72b-instruct:free",
	"mistralai/mistral-7b-instruct:free",
	"google/learnlm-1.5-pro-experimental:free",
	"qwen/qwen3-0.6b-04-28:free",
	"qwen/qwen3-1.7b:free",
	"opengvlab/internvl3-14b:free",
	"opengvlab/internvl3-2b:free",
	"thudm/glm-z1-9b:free",
	"thudm/glm-4-9b:free",
	"meta-llama/llama-3.2-3b-instruct:free",
	"qwen/qwq-32b-preview:free",
	"deepseek/deepseek-r1-distill-qwen-32b:free",
}

// BuiltinModels returns the built-in model list in selector order.
func BuiltinModels() []ModelInfo {
	out := make([]ModelInfo, len(freeModelIDs))
	for i, id := range freeModelIDs {
		out[i] = NewModelInfo(id)
	}
	return out
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a built-in model by exact ID.
func GetModelInfo(id string) (ModelInfo, bool) {
	for _, known := range freeModelIDs {
		if known == id {
			return NewModelInfo(id), true
		}
	}
	return ModelInfo{}, false
}

// SearchModels returns the models whose ID contains query, case-insensitively.
// An empty query returns the list unchanged.
func SearchModels(models []ModelInfo, query string) []ModelInfo {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return models
	}
	result := []ModelInfo{}
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.ID), query) {
			result = append(result, m)
		}
	}
	return result
}

// MergeModels appends the entries of extra not already present in base.
// Remote-only entries are sorted by ID after the base list.
func MergeModels(base, extra []ModelInfo) []ModelInfo {
	seen := make(map[string]bool, len(base))
	out := make([]ModelInfo, 0, len(base)+len(extra))
	for _, m := range base {
		seen[m.ID] = true
		out = append(out, m)
	}
	var added []ModelInfo
	for _, m := range extra {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		added = append(added, m)
	}
	sort.Slice(added, func(i, j int) bool { return added[i].ID < added[j].ID })
	return append(out, added...)
}
