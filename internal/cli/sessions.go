// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/session"
	"github.com/jeranaias/orchat/internal/ui/styles"
	"github.com/jeranaias/orchat/internal/util"
)

// listTitleWidth bounds the title column of "sessions list".
const listTitleWidth = 40

// sessionSummary is the --json form of one list row.
type sessionSummary struct {
	Index       int       `json:"index"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    int       `json:"messages"`
	LastUpdated time.Time `json:"lastUpdated"`
	Active      bool      `json:"active"`
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "s"},
		Short:   "List and manage stored chat sessions",
		Long: `List and manage stored chat sessions.

Sessions are listed newest first. Commands that take a session accept
either its full ID or its 1-based position in "orchat sessions list".`,
	}
	cmd.AddCommand(
		newSessionsListCmd(opts),
		newSessionsShowCmd(opts),
		newSessionsNewCmd(opts),
		newSessionsRenameCmd(opts),
		newSessionsDeleteCmd(opts),
	)
	return cmd
}

func newSessionsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.Sessions.Sessions()
			active := a.Sessions.ActiveID()
			out := cmd.OutOrStdout()

			if opts.jsonOutput {
				rows := make([]sessionSummary, 0, len(list))
				for i, s := range list {
					rows = append(rows, sessionSummary{
						Index:       i + 1,
						ID:          s.ID,
						Title:       s.Title,
						Messages:    s.MessageCount(),
						LastUpdated: s.LastUpdated,
						Active:      s.ID == active,
					})
				}
				return NewJSONResponse("sessions list", rows).Print(out)
			}

			if len(list) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No sessions yet. Start one with: orchat chat"))
				return nil
			}
			writeSessionTable(out, list, active)
			return nil
		},
	}
}

// writeSessionTable prints one aligned row per session. The active
// session is starred.
func writeSessionTable(w io.Writer, list []*model.ChatSession, activeID string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\t#\tTITLE\tMESSAGES\tUPDATED\tID")
	for i, s := range list {
		marker := " "
		if s.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\n",
			marker,
			i+1,
			util.TruncateWidth(util.OneLine(s.Title), listTitleWidth),
			s.MessageCount(),
			humanize.Time(s.LastUpdated),
			s.ID,
		)
	}
	tw.Flush()
}

func newSessionsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|n>",
		Short: "Print a session's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := resolveSession(a.Sessions, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return NewJSONResponse("sessions show", sess).Print(out)
			}

			var md *styles.Markdown
			if IsStdoutTTY() {
				md = styles.NewMarkdown(a.Chat.Settings().Theme)
			}
			printTranscript(out, sess, md, GetTerminalWidth())
			return nil
		},
	}
}

// printTranscript writes the session header and every stored message.
// Assistant replies go through md when it is non-nil.
func printTranscript(w io.Writer, sess *model.ChatSession, md *styles.Markdown, width int) {
	fmt.Fprintln(w, TitleStyle.Render(sess.Title))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("ID:"), ValueStyle.Render(sess.ID))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Updated:"), ValueStyle.Render(sess.LastUpdated.Format("2006-01-02 15:04")))
	fmt.Fprintf(w, "%s%d\n", RenderLabel("Messages:"), sess.MessageCount())
	fmt.Fprintln(w, RenderSeparator())

	for _, m := range sess.Messages {
		if m.IsTransient {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, roleHeading(m))
		switch {
		case md != nil && m.Role == model.RoleAssistant && !m.IsError:
			fmt.Fprintln(w, md.Render(m.Content, width-2))
		case m.IsError:
			fmt.Fprintln(w, ErrorStyle.Render(m.Content))
		default:
			fmt.Fprintln(w, m.Content)
		}
	}
}

func roleHeading(m model.Message) string {
	switch {
	case m.IsError:
		return ErrorStyle.Render("Assistant (error)")
	case m.Role == model.RoleUser:
		return HighlightStyle.Render("You")
	case m.Role == model.RoleSystem:
		return DimStyle.Render("System")
	}
	return TitleStyle.Render("Assistant")
}

func newSessionsNewCmd(opts *rootOptions) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			if strings.TrimSpace(prompt) == "" {
				prompt = a.Config.SystemPrompt
			}
			sess := a.Sessions.CreateSession(prompt)
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created session %s\n", SuccessStyle.Render("[OK]"), sess.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "System prompt (default from config)")
	return cmd
}

func newSessionsRenameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id|n> <title...>",
		Short: "Rename a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return NewValidationError("title", "", "must not be blank")
			}
			if util.RuneLen(title) > model.MaxTitleLength {
				return NewValidationError("title", "", fmt.Sprintf("exceeds %d characters", model.MaxTitleLength))
			}

			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := resolveSession(a.Sessions, args[0])
			if err != nil {
				return err
			}
			a.Sessions.RenameSession(sess.ID, title)
			fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %q\n", SuccessStyle.Render("[OK]"), sess.ID, title)
			return nil
		},
	}
}

func newSessionsDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id|n>...",
		Aliases: []string{"rm"},
		Short:   "Delete sessions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			// Resolve everything first so indexes refer to the original list.
			targets := make([]*model.ChatSession, 0, len(args))
			for _, ref := range args {
				sess, err := resolveSession(a.Sessions, ref)
				if err != nil {
					return err
				}
				targets = append(targets, sess)
			}
			for _, sess := range targets {
				if a.Sessions.DeleteSession(sess.ID) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s (%s)\n", SuccessStyle.Render("[OK]"), sess.ID, sess.Title)
				}
			}
			return nil
		},
	}
}

// resolveSession finds a session by full ID or by 1-based list position.
func resolveSession(store *session.Store, ref string) (*model.ChatSession, error) {
	ref = strings.TrimSpace(ref)
	if sess, ok := store.Session(ref); ok {
		return sess, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		list := store.Sessions()
		if n >= 1 && n <= len(list) {
			return list[n-1], nil
		}
	}
	return nil, ErrNotFound("session", ref)
}
