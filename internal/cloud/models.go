// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/orchat/internal/model"
)

// ListModels retrieves the models offered by the endpoint. The request goes
// through the OpenAI-compatible /models route, so it works against
// OpenRouter and any compatible proxy. The key cursor is not advanced.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	if timeout := c.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cfg := openai.DefaultConfig(c.keys.Peek())
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient

	list, err := openai.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID == "" {
			continue
		}
		info := model.NewModelInfo(m.ID)
		info.Remote = true
		models = append(models, info)
	}
	return models, nil
}

// Catalog returns the built-in models merged with the remote list. A remote
// failure is returned alongside the built-in list so callers can still
// show something.
func (c *Client) Catalog(ctx context.Context) ([]model.ModelInfo, error) {
	builtin := model.BuiltinModels()
	remote, err := c.ListModels(ctx)
	if err != nil {
		return builtin, err
	}
	return model.MergeModels(builtin, remote), nil
}
