// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/orchat/internal/model"
)

// remoteListTimeout bounds "models --remote".
const remoteListTimeout = 20 * time.Second

func newModelsCmd(opts *rootOptions) *cobra.Command {
	var (
		remote bool
		search string
		use    string
	)
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available models or pick the default",
		Long: `List the built-in free models, optionally merged with the endpoint's
live model list.

Examples:
  orchat models                       Built-in free models
  orchat models --remote              Include models reported by the API
  orchat models --search llama        Filter by ID
  orchat models --use deepseek/deepseek-r1:free`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()

			if use != "" {
				if err := a.Chat.SetModel(use); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s Selected model %s\n", SuccessStyle.Render("[OK]"), use)
				return nil
			}

			models := model.BuiltinModels()
			if remote {
				ctx, cancel := context.WithTimeout(cmd.Context(), remoteListTimeout)
				defer cancel()
				var listErr error
				models, listErr = a.Client.Catalog(ctx)
				if listErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s remote model list unavailable: %v\n", WarningStyle.Render("[WARN]"), listErr)
				}
			}
			models = model.SearchModels(models, search)
			selected := a.Chat.SelectedModel()

			if opts.jsonOutput {
				return NewJSONResponse("models", map[string]interface{}{
					"selected": selected,
					"models":   models,
				}).Print(out)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tPROVIDER\tFREE")
			for _, m := range models {
				marker := " "
				if m.ID == selected {
					marker = "*"
				}
				free := ""
				if m.Free {
					free = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, m.ID, m.Name, m.Provider, free)
			}
			tw.Flush()
			if len(models) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No models match."))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "Fetch the live model list from the API")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show models whose ID contains this text")
	cmd.Flags().StringVar(&use, "use", "", "Select this model for future chats")
	return cmd
}
