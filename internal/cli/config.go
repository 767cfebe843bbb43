// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/orchat/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Long: `Show or change the TOML configuration.

The file lives at ~/.orchat/config.toml unless ORCHAT_HOME or --config
points elsewhere. Environment variables (ORCHAT_API_KEYS,
OPENROUTER_API_KEY, ORCHAT_MODEL, ...) override it at load time but are
never written back.

Examples:
  orchat config show
  orchat config init
  orchat config set api.keys sk-or-one,sk-or-two
  orchat config set default_model deepseek/deepseek-r1:free
  orchat config get server.addr`,
	}
	cmd.AddCommand(
		newConfigShowCmd(opts),
		newConfigPathCmd(opts),
		newConfigInitCmd(opts),
		newConfigGetCmd(opts),
		newConfigSetCmd(opts),
		newConfigKeysCmd(),
	)
	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (keys redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			safe := cfg.Redacted()
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return NewJSONResponse("config show", safe).Print(out)
			}
			path, _ := opts.configFile()
			printConfig(out, safe, path)
			return nil
		},
	}
}

// printConfig writes cfg grouped by TOML section.
func printConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, TitleStyle.Render("orchat configuration"))
	fmt.Fprintln(w, RenderSeparator())

	section := ""
	for _, key := range config.GetAllKeys() {
		head := ""
		if i := strings.Index(key, "."); i > 0 {
			head = key[:i]
		}
		if head != section {
			section = head
			fmt.Fprintln(w)
			fmt.Fprintln(w, HighlightStyle.Render("["+section+"]"))
		}
		val, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  %s%s\n", LabelStyle.Width(20).Render(strings.TrimPrefix(key, head+".")), ValueStyle.Render(formatConfigValue(val)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderSeparator())
	fmt.Fprintf(w, "Config file: %s\n", DimStyle.Render(path))
}

func formatConfigValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return "(not set)"
		}
		return strings.Join(val, ", ")
	case string:
		if val == "" {
			return "(not set)"
		}
		return val
	}
	return fmt.Sprintf("%v", v)
}

func newConfigPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.configFile()
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				_, statErr := os.Stat(path)
				return NewJSONResponse("config path", map[string]interface{}{
					"path":   path,
					"exists": statErr == nil,
				}).Print(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newConfigGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			val, err := cfg.Redacted().Get(args[0])
			if err != nil {
				return NewValidationError("key", args[0], err.Error())
			}
			if opts.jsonOutput {
				return NewJSONResponse("config get", map[string]interface{}{args[0]: val}).Print(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatConfigValue(val))
			return nil
		},
	}
}

func newConfigSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value and save the file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			path, err := opts.configFile()
			if err != nil {
				return err
			}

			// Read the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return err
				}
			} else if !errors.Is(statErr, os.ErrNotExist) {
				return fmt.Errorf("failed to read config file: %w", statErr)
			}

			if err := cfg.Set(key, value); err != nil {
				return NewValidationError("key", key, err.Error())
			}
			if err := cfg.Migrate(); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s updated in %s\n", SuccessStyle.Render("[OK]"), key, path)
			return nil
		},
	}
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the settable configuration keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range config.GetAllKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
}
