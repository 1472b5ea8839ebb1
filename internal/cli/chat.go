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

	"github.com/peterh/liner"
	"github.com/soyeahso/geminichat/internal/domain"
	"github.com/soyeahso/geminichat/internal/history"
	"github.com/soyeahso/geminichat/internal/session"
	"github.com/spf13/cobra"
)

const chatPrompt = "you> "

func newChatCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: "Chat with Gemini in the terminal. Conversations are saved locally. " +
			"Use --server to send requests to a running geminichat server instead of calling Gemini directly.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server != "" {
				cfg.Client.ServerURL = server
			}
			if err := validateConfig(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			gw, via, err := newGateway(cfg.Client.ServerURL)
			if err != nil {
				return err
			}

			store, closeStore, err := openHistory()
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			notifier := session.NotifierFunc(func(n session.Notification) {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", n.Title, n.Message)
			})
			r := &repl{
				ctrl:  session.New(store, gw, notifier, log),
				store: store,
				out:   out,
			}

			fmt.Fprintf(out, "geminichat via %s. Type /help for commands.\n", via)
			input := newLineInput(filepath.Join(paths.Data, "chat_history"))
			defer input.Close()
			return r.run(ctx, input)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "geminichat server URL (default: call Gemini in-process)")
	return cmd
}

// lineReader is the prompt source for the REPL.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// lineInput is a liner-backed prompt with history saved across sessions.
type lineInput struct {
	state       *liner.State
	historyFile string
}

func newLineInput(historyFile string) *lineInput {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	in := &lineInput{state: state, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		state.ReadHistory(f)
		f.Close()
	}
	return in
}

func (l *lineInput) Prompt(prompt string) (string, error) {
	line, err := l.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		l.state.AppendHistory(line)
	}
	return line, nil
}

// Close saves input history and restores the terminal.
func (l *lineInput) Close() {
	if f, err := os.OpenFile(l.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
		l.state.WriteHistory(f)
		f.Close()
	}
	l.state.Close()
}

// repl reads lines and dispatches them to the session controller.
type repl struct {
	ctrl  *session.Controller
	store *history.Store
	out   io.Writer
}

func (r *repl) run(ctx context.Context, in lineReader) error {
	for {
		line, err := in.Prompt(chatPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		more, err := r.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if !more {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle runs one line of input. It returns false when the session should end.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}
	if strings.HasPrefix(line, "/") {
		return r.command(line)
	}

	// Ctrl+C while waiting abandons the turn.
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	turn, err := r.ctrl.Submit(turnCtx, line)
	switch {
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrEmptyInput):
		return true, err
	case turnCtx.Err() != nil && ctx.Err() == nil:
		fmt.Fprintln(r.out, "[cancelled]")
		return true, nil
	case err != nil:
		// already reported through the notifier
		return true, nil
	}

	fmt.Fprintf(r.out, "gemini> %s\n", turn.Assistant.Content)
	if turn.Title != "" && turn.Title != domain.DefaultTitle {
		if conv, ok := r.store.Get(turn.ConversationID); ok && len(conv.Messages) == 2 {
			fmt.Fprintf(r.out, "(saved as %q)\n", turn.Title)
		}
	}
	return true, nil
}

func (r *repl) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return false, nil
	case "/help":
		printChatHelp(r.out)
	case "/new":
		r.ctrl.NewChat()
		fmt.Fprintln(r.out, "Started a new chat.")
	case "/list":
		printConversationList(r.out, r.store.List(), r.store.CurrentID())
	case "/show":
		printMessages(r.out, r.ctrl.Messages())
	case "/open":
		id, err := resolveConversation(r.store.List(), arg)
		if err != nil {
			return true, err
		}
		if err := r.ctrl.Open(id); err != nil {
			return true, err
		}
		conv, _ := r.store.Current()
		fmt.Fprintf(r.out, "Opened %q.\n", conv.Title)
		printMessages(r.out, conv.Messages)
	case "/delete":
		id, err := resolveConversation(r.store.List(), arg)
		if err != nil {
			return true, err
		}
		if r.ctrl.Delete(id) {
			fmt.Fprintf(r.out, "Deleted %s.\n", id)
		}
	default:
		return true, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return true, nil
}

func printChatHelp(w io.Writer) {
	fmt.Fprintln(w, `Commands:
  /new            start a new chat
  /list           list saved chats, most recent first
  /open <n|id>    switch to a saved chat
  /delete <n|id>  delete a saved chat
  /show           print the current chat
  /help           show this help
  /quit           leave`)
}

func printConversationList(w io.Writer, convs []domain.Conversation, currentID string) {
	if len(convs) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	for i, c := range convs {
		marker := " "
		if c.ID == currentID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %2d. %-40s %3d msgs  %s  %s\n",
			marker, i+1, c.Title, len(c.Messages),
			c.UpdatedAt.Local().Format("2006-01-02 15:04"), c.ID)
	}
}

func printMessages(w io.Writer, msgs []domain.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "(no messages)")
		return
	}
	for _, m := range msgs {
		who := "you"
		if m.Role == domain.RoleAssistant {
			who = "gemini"
		}
		suffix := ""
		if m.Failed {
			suffix = "  [failed]"
		}
		fmt.Fprintf(w, "%s> %s%s\n", who, m.Content, suffix)
	}
}
