package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claridoc/internal/chat"
	"claridoc/internal/command"
	"claridoc/internal/config"
	"claridoc/internal/editor"
	"claridoc/internal/usage"
)

// editCmd opens an interactive editing session
var editCmd = &cobra.Command{
	Use:   "edit [doc-id]",
	Short: "Edit a document interactively with the assistant",
	Long: `Opens a document in an interactive session. Plain text is sent to the
assistant; lines starting with ':' are editor commands. Type :help for the list.

Edits are autosaved after a short pause. Changes made elsewhere (another
session, or the mirror directory) replace the buffer as they arrive.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

const replHelp = `Editor commands:
  :show                 print the document
  :undo  :redo          step through edit history
  :save                 save now
  :diff                 show changes since the session started
  :find <text>          search (case-insensitive)
  :next  :prev          move between matches
  :append <text>        append a line
  :exec <cmd> k=v ...   run an edit command directly
  :file <path> [text]   send a file to the assistant
  :history              print the chat
  :clear                clear the chat
  :quit                 save and exit
Anything else is sent to the assistant.
`

// repl executes one input line at a time against a session.
type repl struct {
	s    *editor.Session
	out  io.Writer
	base string // content when the session started
	noAI error  // why the assistant is unavailable, if it is
}

// handle runs one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		r.ask(ctx, line, nil)
		return false
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "q", "quit", "exit":
		return true
	case "help", "h", "?":
		fmt.Fprint(r.out, replHelp)
	case "show", "s":
		fmt.Fprint(r.out, renderDocument(r.s.Title(), r.s.Content()))
	case "undo", "u":
		if !r.s.Undo() {
			r.printf("nothing to undo\n")
		}
	case "redo", "r":
		if !r.s.Redo() {
			r.printf("nothing to redo\n")
		}
	case "save", "w":
		if err := r.s.Save(ctx); err != nil {
			r.fail(err)
		} else {
			r.printf("saved\n")
		}
	case "diff", "d":
		fmt.Fprint(r.out, renderDiff(r.base, r.s.Content()))
	case "find", "f":
		n, err := r.s.Find(rest)
		if err != nil {
			r.fail(err)
			break
		}
		r.printf("%d match(es)\n", n)
		r.printMatches()
	case "next", "n":
		r.s.NextMatch()
		r.printMatches()
	case "prev", "p":
		r.s.PrevMatch()
		r.printMatches()
	case "append", "a":
		r.apply(command.Append{Content: rest})
	case "exec", "x":
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			r.printf("usage: :exec <command> key=value ...\n")
			break
		}
		args, err := parseArgs(fields[1:])
		if err != nil {
			r.fail(err)
			break
		}
		cmd, err := command.Parse(fields[0], args)
		if err != nil {
			r.fail(err)
			break
		}
		r.apply(cmd)
	case "file":
		path, text, _ := strings.Cut(rest, " ")
		if path == "" {
			r.printf("usage: :file <path> [message]\n")
			break
		}
		att, err := chat.AttachmentFromFile(path)
		if err != nil {
			r.fail(err)
			break
		}
		r.ask(ctx, strings.TrimSpace(text), att)
	case "history":
		for _, t := range r.s.Turns() {
			fmt.Fprint(r.out, renderTurn(t))
		}
	case "clear":
		if err := r.s.ClearChat(ctx); err != nil {
			r.fail(err)
		} else {
			r.printf("chat cleared\n")
		}
	default:
		r.printf("unknown command :%s (try :help)\n", name)
	}
	return false
}

func (r *repl) apply(cmd command.Command) {
	if err := r.s.Apply(cmd); err != nil {
		r.fail(err)
		return
	}
	r.printf("%s applied\n", cmd.Name())
}

func (r *repl) ask(ctx context.Context, text string, att *chat.Attachment) {
	if r.noAI != nil {
		r.fail(fmt.Errorf("assistant unavailable: %w", r.noAI))
		return
	}
	turnCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	before := r.s.Content()
	reply, err := r.s.Ask(usage.WithDocument(turnCtx, r.s.DocumentID()), text, att)
	if reply.Role != "" {
		fmt.Fprint(r.out, renderReply(reply))
	}
	if err != nil && reply.Role == "" {
		r.fail(err)
	}
	if after := r.s.Content(); after != before {
		fmt.Fprint(r.out, renderDiff(before, after))
	}
}

func (r *repl) printMatches() {
	st := r.s.Search()
	if st.Query == "" {
		r.printf("no search (use :find <text>)\n")
		return
	}
	fmt.Fprint(r.out, renderMatches(r.s.Content(), st.Matches, st.Active))
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) fail(err error) {
	fmt.Fprintln(r.out, style(errorStyle, "error: "+err.Error()))
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	assistant, aiErr := newAssistant(usage.NewContext(ctx, a.tokens))
	if aiErr != nil {
		logger.Warn("Assistant disabled", zap.Error(aiErr))
	}
	s, err := a.openSession(ctx, args[0], assistant)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, renderDocument(s.Title(), s.Content()))
	if aiErr != nil {
		fmt.Fprintln(out, style(errorStyle, "assistant unavailable: "+aiErr.Error()))
	}
	fmt.Fprintln(out, style(dimStyle, "Type :help for commands."))

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := filepath.Join(workspace, config.DirName, "edit_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	r := &repl{s: s, out: out, base: s.Content(), noAI: aiErr}
	for {
		input, err := line.Prompt("claridoc> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				logger.Warn("Prompt failed", zap.Error(err))
			}
			fmt.Fprintln(out)
			break
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if r.handle(ctx, input) {
			break
		}
	}

	_ = os.MkdirAll(filepath.Dir(historyFile), 0755)
	if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
	line.Close()

	return finish(ctx, s)
}
