package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claridoc/internal/command"
)

var (
	execArgs []string
	execDiff bool
)

// execCmd runs one edit command directly, without the assistant
var execCmd = &cobra.Command{
	Use:   "exec [doc-id] [command]",
	Short: "Apply an edit command to a document",
	Long: `Runs one of the assistant's edit commands directly against a document.

Commands and arguments:
  update_doc_by_line     start_line, end_line, new_content
  update_doc_by_replace  old_string, new_string, occurrence (first|last|all)
  insert_at_line         line_number, content, position (before|after)
  delete_lines           start_line, end_line
  append_to_document     content

Example:
  claridoc exec 1f0c... delete_lines --arg start_line=2 --arg end_line=3`,
	Args: cobra.ExactArgs(2),
	RunE: execCommand,
}

func init() {
	execCmd.Flags().StringArrayVarP(&execArgs, "arg", "a", nil, "Command argument as key=value (repeatable)")
	execCmd.Flags().BoolVar(&execDiff, "diff", false, "Print the change instead of the whole document")
}

// parseArgs turns key=value pairs into tool-call arguments. Values stay
// strings; the command parser coerces numbers.
func parseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --arg %q: want key=value", p)
		}
		args[k] = v
	}
	return args, nil
}

func execCommand(cmd *cobra.Command, args []string) error {
	docID, name := args[0], args[1]
	toolArgs, err := parseArgs(execArgs)
	if err != nil {
		return err
	}
	edit, err := command.Parse(name, toolArgs)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.openSession(ctx, docID, nil)
	if err != nil {
		return err
	}
	before := s.Content()
	if err := s.Apply(edit); err != nil {
		s.Close()
		return err
	}
	content, title := s.Content(), s.Title()
	if err := finish(ctx, s); err != nil {
		return err
	}

	logger.Info("Command applied", zap.String("doc", docID), zap.String("command", name))
	if execDiff {
		fmt.Fprint(cmd.OutOrStdout(), renderDiff(before, content))
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), renderDocument(title, content))
	return nil
}
