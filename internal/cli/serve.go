// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/server"
)

// shutdownTimeout bounds the graceful stop of "orchat serve".
const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser chat UI",
		Long: `Serve the browser chat UI and its JSON API.

The UI shares sessions and settings with the terminal front ends. Edits
to the config file are picked up without a restart unless --watch=false.

Examples:
  orchat serve
  orchat serve --addr 0.0.0.0:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.Config
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if watch {
				if path, err := opts.configFile(); err == nil {
					if _, statErr := os.Stat(path); statErr == nil {
						if err := a.Watch(path); err != nil {
							logging.Warnf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
						}
					}
				}
			}
			if !a.Client.IsConfigured() {
				logging.Warnf("SERVE_NO_KEYS | sends will fail until api.keys is set")
			}

			srv := server.New(a.Chat, a.Client).
				WithAddr(addr).
				WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst).
				WithSystemPrompt(cfg.SystemPrompt)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			fmt.Fprintf(cmd.OutOrStdout(), "%s Serving on http://%s (Ctrl-C to stop)\n",
				SuccessStyle.Render("[OK]"), srv.Addr())

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload the config file when it changes")
	return cmd
}
