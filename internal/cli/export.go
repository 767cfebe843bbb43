// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/orchat/internal/export"
	"github.com/jeranaias/orchat/internal/model"
)

type exportOptions struct {
	format    string
	outputDir string
	stdout    bool
	all       bool
	noSystem  bool
	noMeta    bool
	theme     string
	openAfter bool
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	eo := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export [id|n]",
		Short: "Export sessions to Markdown, JSON, YAML or HTML",
		Long: `Export a session to a file.

Without an argument the active (newest) session is exported. Pending
placeholders are never exported; failed replies are marked.

Examples:
  orchat export                        Export the active session as Markdown
  orchat export 2 --format html        Export the second session as HTML
  orchat export --all --format json    Export every session as JSON
  orchat export 1 --stdout --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exOpts := export.DefaultOptions()
			exOpts.OutputDir = eo.outputDir
			exOpts.IncludeSystem = !eo.noSystem
			exOpts.IncludeMetadata = !eo.noMeta
			exOpts.OpenAfterExport = eo.openAfter
			if eo.theme != "" {
				exOpts.Theme = eo.theme
			}

			exporter, err := export.New(eo.format, exOpts)
			if err != nil {
				return ErrUnsupportedFormat(eo.format, export.Formats)
			}
			if eo.all && len(args) > 0 {
				return NewValidationError("arguments", strings.Join(args, " "), "--all takes no session")
			}
			if eo.all && eo.stdout {
				return NewValidationError("flags", "--all --stdout", "export one session at a time to stdout")
			}

			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			exOpts.Model = a.Chat.SelectedModel()

			var targets []*model.ChatSession
			switch {
			case eo.all:
				targets = a.Sessions.Sessions()
			case len(args) == 1:
				sess, err := resolveSession(a.Sessions, args[0])
				if err != nil {
					return err
				}
				targets = append(targets, sess)
			default:
				sess := a.Sessions.Active()
				if sess == nil {
					return ErrNotFound("session", "active")
				}
				targets = append(targets, sess)
			}

			if eo.stdout {
				return export.Write(cmd.OutOrStdout(), targets[0], exporter)
			}
			for _, sess := range targets {
				path, err := export.ExportToFile(sess, exporter, exOpts)
				if err != nil {
					return fmt.Errorf("failed to export session %s: %w", sess.ID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %q to %s\n", SuccessStyle.Render("[OK]"), sess.Title, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&eo.format, "format", "f", "markdown", "Output format: markdown (md), json, yaml, html")
	cmd.Flags().StringVarP(&eo.outputDir, "output", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&eo.stdout, "stdout", false, "Write to stdout instead of a file")
	cmd.Flags().BoolVar(&eo.all, "all", false, "Export every session")
	cmd.Flags().BoolVar(&eo.noSystem, "no-system", false, "Omit the system prompt")
	cmd.Flags().BoolVar(&eo.noMeta, "no-metadata", false, "Omit the metadata header")
	cmd.Flags().StringVar(&eo.theme, "theme", "", "HTML theme: light or dark")
	cmd.Flags().BoolVar(&eo.openAfter, "open", false, "Open the file after exporting")
	return cmd
}
