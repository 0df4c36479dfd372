package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claridoc/internal/chat"
	"claridoc/internal/usage"
)

var (
	chatFile    string
	chatHistory bool
)

// findCmd searches a document
var findCmd = &cobra.Command{
	Use:   "find [doc-id] [query]",
	Short: "Find case-insensitive matches in a document",
	Args:  cobra.MinimumNArgs(2),
	RunE:  findInDocument,
}

// chatCmd sends one message to the assistant
var chatCmd = &cobra.Command{
	Use:   "chat [doc-id] [message...]",
	Short: "Ask the assistant about, or to edit, a document",
	Long: `Sends one message to the assistant with the document as context. The
assistant may answer in text or edit the document; edits are saved before the
command exits.

Example:
  claridoc chat 1f0c... "turn the second paragraph into a bullet list"
  claridoc chat 1f0c... "transcribe this" --file scan.png
  claridoc chat 1f0c... --history`,
	Args: cobra.MinimumNArgs(1),
	RunE: chatWithAssistant,
}

func init() {
	chatCmd.Flags().StringVarP(&chatFile, "file", "f", "", "Attach a file (image, PDF, text; max 10 MiB)")
	chatCmd.Flags().BoolVar(&chatHistory, "history", false, "Print the chat history before sending")
}

func findInDocument(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.openSession(ctx, args[0], nil)
	if err != nil {
		return err
	}
	defer s.Close()

	query := strings.Join(args[1:], " ")
	n, err := s.Find(query)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	st := s.Search()
	fmt.Fprintf(out, "%d match(es) for %q\n", n, query)
	if n > 0 {
		fmt.Fprint(out, renderMatches(s.Content(), st.Matches, st.Active))
	}
	return nil
}

func chatWithAssistant(cmd *cobra.Command, args []string) error {
	docID := args[0]
	message := strings.Join(args[1:], " ")

	var att *chat.Attachment
	if chatFile != "" {
		var err error
		if att, err = chat.AttachmentFromFile(chatFile); err != nil {
			return err
		}
	}
	if strings.TrimSpace(message) == "" && att == nil && !chatHistory {
		return fmt.Errorf("nothing to send: give a message or --file")
	}

	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if strings.TrimSpace(message) == "" && att == nil {
		s, err := a.openSession(ctx, docID, nil)
		if err != nil {
			return err
		}
		defer s.Close()
		for _, t := range s.Turns() {
			fmt.Fprint(out, renderTurn(t))
		}
		return nil
	}

	assistant, err := newAssistant(usage.NewContext(ctx, a.tokens))
	if err != nil {
		return err
	}
	s, err := a.openSession(ctx, docID, assistant)
	if err != nil {
		return err
	}

	if chatHistory {
		for _, t := range s.Turns() {
			fmt.Fprint(out, renderTurn(t))
		}
	}

	before := s.Content()
	reply, askErr := s.Ask(usage.WithDocument(ctx, docID), message, att)
	if reply.Role != "" {
		fmt.Fprint(out, renderReply(reply))
	}
	after := s.Content()
	changed := after != before

	if err := finish(ctx, s); err != nil {
		return err
	}
	if askErr != nil {
		logger.Warn("Assistant turn failed", zap.String("doc", docID), zap.Error(askErr))
		return askErr
	}
	if changed {
		logger.Info("Document updated by assistant", zap.String("doc", docID))
		fmt.Fprint(out, renderDiff(before, after))
		fmt.Fprintln(out, style(dimStyle, "(document saved)"))
	}
	return nil
}
