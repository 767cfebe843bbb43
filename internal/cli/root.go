// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/orchat/internal/app"
	"github.com/jeranaias/orchat/internal/config"
	"github.com/jeranaias/orchat/internal/logging"
)

// Build information, set with -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	jsonOutput bool
}

// NewRootCmd builds the orchat command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "orchat",
		Short: "Chat with free OpenRouter models",
		Long: `orchat is a multi-session chat client for OpenRouter.

Sessions, settings and the selected model are stored locally and shared by
every front end: the line REPL, the full-screen terminal UI and the
browser UI served by "orchat serve".

Quick Start:
  export OPENROUTER_API_KEY=sk-or-...
  orchat chat                         # Line-based chat
  orchat tui                          # Full-screen chat
  orchat serve                        # Browser UI on http://127.0.0.1:8080
  orchat sessions list                # List stored sessions
  orchat export 1 --format md         # Export the newest session`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default ~/.orchat/config.toml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format where supported")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(
		newChatCmd(opts),
		newTUICmd(opts),
		newServeCmd(opts),
		newSessionsCmd(opts),
		newExportCmd(opts),
		newModelsCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	c, err := root.ExecuteContextC(ctx)
	if err == nil {
		return
	}
	if jsonMode, _ := root.PersistentFlags().GetBool("json"); jsonMode {
		_ = NewJSONErrorResponse(c.CommandPath(), err).Print(os.Stdout)
	} else {
		DisplayError(os.Stderr, err)
	}
	os.Exit(GetExitCode(err))
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig reads --config or the default file. Unless verbose or a log
// file is configured, interactive commands only log warnings so stderr
// stays readable.
func (o *rootOptions) loadConfig(quiet bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	switch {
	case o.verbose:
		cfg.Logging.Level = logging.LevelDebug.String()
	case quiet && cfg.Logging.File == "" && cfg.Logging.Level != logging.LevelDebug.String():
		cfg.Logging.Level = logging.LevelWarn.String()
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// openApp loads the config and assembles the application.
func (o *rootOptions) openApp(ctx context.Context, quiet bool) (*app.App, error) {
	cfg, err := o.loadConfig(quiet)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// configFile returns the file "config" subcommands read and write.
func (o *rootOptions) configFile() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.ConfigPath()
}
