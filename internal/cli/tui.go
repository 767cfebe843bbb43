// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/orchat/internal/app"
	"github.com/jeranaias/orchat/internal/config"
	"github.com/jeranaias/orchat/internal/ui/tui"
)

// tuiLogName is the log file used when the TUI owns the terminal.
const tuiLogName = "orchat.log"

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Full-screen chat with a session sidebar",
		Long: `Full-screen chat with a session sidebar.

Keys:
  Enter / Ctrl-S    Send (Enter inserts a newline when enter_to_send is off)
  Ctrl-N            New chat
  Tab / Shift-Tab   Next / previous chat
  Ctrl-L            Clear the current chat
  Esc               Cancel a pending reply
  Ctrl-C            Cancel, or quit when idle

Logs go to ~/.orchat/orchat.log unless logging.file is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("tui"); err != nil {
				return err
			}
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.Logging.File == "" {
				if dir, err := config.ConfigDir(); err == nil && os.MkdirAll(dir, 0700) == nil {
					cfg.Logging.File = filepath.Join(dir, tuiLogName)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return tui.Run(ctx, a)
		},
	}
}
