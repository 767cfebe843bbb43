// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line chat for the orchat CLI.
//
// Command: chat [message...]
//
// With a message, sends it once to the active session, prints the reply
// and exits. Without one, starts a REPL with input history.
//
// Interactive Commands (during chat):
//
//	/help, /h           Show available commands
//	/new                Start a new session
//	/sessions, /ls      List sessions
//	/switch <n|id>      Switch session
//	/rename <title>     Rename the current session
//	/clear, /c          Clear the current session
//	/model [id]         Show or switch model
//	/stream on|off      Toggle streamed completions
//	/history            Show the current transcript
//	/quit, /q           Exit chat
//	Ctrl+C              Cancel the pending reply, or exit at the prompt
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/orchat/internal/app"
	"github.com/jeranaias/orchat/internal/chat"
	"github.com/jeranaias/orchat/internal/config"
	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/ui/styles"
	"github.com/jeranaias/orchat/internal/util"
)

// historyFileName is the REPL input history inside the config directory.
const historyFileName = "chat_history"

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// newLineReader opens the terminal line editor. Tests replace it.
var newLineReader = func() lineReader { return NewChatCLI() }

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor and loads the saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(dir, historyFileName),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the history file owner-only.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

type chatOptions struct {
	model      string
	sessionRef string
	newSession bool
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var co chatOptions
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Chat in the terminal",
		Long: `Chat in the terminal.

With a message, sends it once and prints the reply. Without one, starts an
interactive session with input history. Type /help inside for commands.

Examples:
  orchat chat
  orchat chat "Explain goroutines in one paragraph"
  orchat chat --new -m deepseek/deepseek-r1:free
  orchat chat --session 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			if co.model != "" {
				a.Chat.WithModel(co.model)
			}
			switch {
			case co.sessionRef != "":
				sess, err := resolveSession(a.Sessions, co.sessionRef)
				if err != nil {
					return err
				}
				a.Sessions.SelectSession(sess.ID)
			case co.newSession:
				a.NewSession()
			default:
				a.EnsureSession()
			}

			r := newREPL(a, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if len(args) > 0 {
				return r.oneShot(cmd.Context(), strings.Join(args, " "))
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&co.model, "model", "m", "", "Model for this run (not saved)")
	cmd.Flags().StringVarP(&co.sessionRef, "session", "s", "", "Continue a session by ID or list position")
	cmd.Flags().BoolVarP(&co.newSession, "new", "n", false, "Start a new session")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

// repl is one interactive chat run.
type repl struct {
	app    *app.App
	out    io.Writer
	errOut io.Writer
	md     *styles.Markdown
	width  int

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newREPL(a *app.App, out, errOut io.Writer) *repl {
	r := &repl{app: a, out: out, errOut: errOut, width: GetTerminalWidth()}
	if IsStdoutTTY() {
		r.md = styles.NewMarkdown(a.Chat.Settings().Theme)
	}
	return r
}

// oneShot sends text and prints the reply. A failed completion is an error.
func (r *repl) oneShot(ctx context.Context, text string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := r.send(ctx, text)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	return nil
}

// run reads input until /quit, EOF or Ctrl-C at the prompt.
func (r *repl) run(ctx context.Context) error {
	in := newLineReader()
	defer in.Close()

	r.printWelcome()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if r.cancelCurrent() {
				fmt.Fprintln(r.errOut, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := r.readMessage(in)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				fmt.Fprintln(r.out, infoStyle.Render("Goodbye!"))
				return nil
			}
			return err
		}

		trimmed := strings.TrimSpace(input)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "/"):
			keepGoing, err := r.handleSlashCommand(trimmed)
			if err != nil {
				fmt.Fprintf(r.errOut, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				fmt.Fprintln(r.out, infoStyle.Render("Goodbye!"))
				return nil
			}
			continue
		case strings.EqualFold(trimmed, "exit"), strings.EqualFold(trimmed, "quit"):
			fmt.Fprintln(r.out, infoStyle.Render("Goodbye!"))
			return nil
		}

		if _, err := r.send(ctx, input); err != nil {
			fmt.Fprintf(r.errOut, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// readMessage reads one message. A trailing backslash continues the line.
// With enter-to-send off, lines accumulate until a blank line.
func (r *repl) readMessage(in lineReader) (string, error) {
	enterToSend := r.app.Chat.Settings().EnterToSend
	prompt := promptStyle.Render("orchat> ")
	cont := promptStyle.Render("   ...> ")

	var lines []string
	for {
		p := prompt
		if len(lines) > 0 {
			p = cont
		}
		line, err := in.ReadInput(p)
		if err != nil {
			return "", err
		}

		if len(lines) == 0 && strings.HasPrefix(strings.TrimSpace(line), "/") {
			return line, nil
		}
		if strings.HasSuffix(line, `\`) {
			lines = append(lines, strings.TrimSuffix(line, `\`))
			continue
		}
		if enterToSend {
			return strings.Join(append(lines, line), "\n"), nil
		}
		if strings.TrimSpace(line) == "" {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
}

// send runs one exchange on the active session and prints the reply.
func (r *repl) send(ctx context.Context, text string) (chat.Result, error) {
	sess := r.app.EnsureSession()

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	if r.md != nil && r.app.Chat.Settings().ShowTypingIndicator {
		fmt.Fprintln(r.errOut, DimStyle.Render("Assistant is typing..."))
	}

	res := r.app.Chat.Send(ctx, text, sess.ID)
	switch res.Rejected {
	case chat.RejectEmpty:
		return res, nil
	case chat.RejectBusy:
		return res, errors.New("a reply is still pending")
	case chat.RejectNoSession:
		return res, ErrNotFound("session", sess.ID)
	}

	fmt.Fprintln(r.out)
	if res.Err != nil {
		fmt.Fprintln(r.out, ErrorStyle.Render(res.Reply.Content))
		fmt.Fprintln(r.errOut, DimStyle.Render(fmt.Sprintf("[%v]", res.Err)))
		fmt.Fprintln(r.out)
		return res, nil
	}
	r.printReply(res.Reply)
	logging.Debugf("CHAT_REPLY | session=%s elapsed=%s chars=%d", sess.ID, res.Elapsed, len(res.Reply.Content))
	return res, nil
}

func (r *repl) printReply(m model.Message) {
	if r.md != nil {
		fmt.Fprintln(r.out, r.md.Render(m.Content, r.width-2))
	} else {
		fmt.Fprintln(r.out, m.Content)
	}
	fmt.Fprintln(r.out)
}

// cancelCurrent cancels the pending exchange, if any.
func (r *repl) cancelCurrent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func (r *repl) handleSlashCommand(line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true, nil
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]
	store := r.app.Sessions

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		sess := r.app.NewSession()
		fmt.Fprintf(r.out, "%s Started %s\n", commandStyle.Render("[OK]"), sess.ID)

	case "/sessions", "/ls":
		list := store.Sessions()
		if len(list) == 0 {
			fmt.Fprintln(r.out, infoStyle.Render("[No sessions]"))
			break
		}
		writeSessionTable(r.out, list, store.ActiveID())

	case "/switch", "/sw":
		if len(args) != 1 {
			return true, errors.New("usage: /switch <n|id>")
		}
		sess, err := resolveSession(store, args[0])
		if err != nil {
			return true, err
		}
		store.SelectSession(sess.ID)
		fmt.Fprintf(r.out, "%s Switched to %q\n", commandStyle.Render("[OK]"), sess.Title)

	case "/rename":
		title := strings.TrimSpace(strings.Join(args, " "))
		if title == "" {
			return true, errors.New("usage: /rename <title>")
		}
		if util.RuneLen(title) > model.MaxTitleLength {
			return true, fmt.Errorf("title exceeds %d characters", model.MaxTitleLength)
		}
		store.RenameSession(store.ActiveID(), title)
		fmt.Fprintf(r.out, "%s Renamed to %q\n", commandStyle.Render("[OK]"), title)

	case "/clear", "/c":
		if id := store.ActiveID(); id != "" {
			r.app.Chat.Clear(id)
			r.app.Chat.ClearError()
		}
		fmt.Fprintln(r.out, commandStyle.Render("[Conversation cleared]"))

	case "/model", "/m":
		if len(args) == 0 {
			fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("[Model]"),
				commandStyle.Render(model.NewModelInfo(r.app.Chat.SelectedModel()).Label()))
			break
		}
		if err := r.app.Chat.SetModel(args[0]); err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s Switched to model: %s\n", commandStyle.Render("[OK]"), args[0])

	case "/stream":
		s := r.app.Chat.Settings()
		switch {
		case len(args) == 0:
			fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("[Stream]"), onOff(s.StreamResponses))
			return true, nil
		case strings.EqualFold(args[0], "on"):
			s.StreamResponses = true
		case strings.EqualFold(args[0], "off"):
			s.StreamResponses = false
		default:
			return true, errors.New("usage: /stream on|off")
		}
		if err := r.app.Chat.UpdateSettings(s); err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s Streaming %s\n", commandStyle.Render("[OK]"), onOff(s.StreamResponses))

	case "/history":
		r.printHistory()

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (r *repl) printWelcome() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, welcomeStyle.Render("orchat interactive chat"))
	fmt.Fprintln(r.out, infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("Model:"),
		commandStyle.Render(model.NewModelInfo(r.app.Chat.SelectedModel()).Label()))
	if sess := r.app.Sessions.Active(); sess != nil {
		fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("Session:"), commandStyle.Render(sess.Title))
	}
	if !r.app.Client.IsConfigured() {
		fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("API:"),
			WarningStyle.Render("No API key (set OPENROUTER_API_KEY or api.keys)"))
	}
	fmt.Fprintln(r.out)
	hint := "Type your message and press Enter. Commands: /help, /quit"
	if !r.app.Chat.Settings().EnterToSend {
		hint = "Type your message, then an empty line to send. Commands: /help, /quit"
	}
	fmt.Fprintln(r.out, infoStyle.Render(hint))
	fmt.Fprintln(r.out)
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("Available Commands"))
	fmt.Fprintln(r.out, infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Fprintln(r.out)

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new", "Start a new session"},
		{"/sessions, /ls", "List sessions"},
		{"/switch <n|id>", "Switch session"},
		{"/rename <title>", "Rename the current session"},
		{"/clear, /c", "Clear the current session"},
		{"/model [id]", "Show or switch model"},
		{"/stream on|off", "Toggle streamed completions"},
		{"/history", "Show the current transcript"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-16s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, infoStyle.Render(`Tip: end a line with \ to continue it. Ctrl+C cancels a pending reply.`))
	fmt.Fprintln(r.out)
}

func (r *repl) printHistory() {
	sess := r.app.Sessions.Active()
	if sess == nil || sess.MessageCount() == 0 {
		fmt.Fprintln(r.out, infoStyle.Render("[No messages yet]"))
		return
	}
	fmt.Fprintln(r.out)
	printTranscript(r.out, sess, r.md, r.width)
	fmt.Fprintln(r.out)
}
