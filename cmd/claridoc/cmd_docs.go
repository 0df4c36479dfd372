package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claridoc/internal/buffer"
)

// docsCmd groups document management commands
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List, create and rename documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your documents, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  listDocuments,
}

var docsNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create an empty document",
	Args:  cobra.MinimumNArgs(1),
	RunE:  newDocument,
}

var docsRenameCmd = &cobra.Command{
	Use:   "rename [doc-id] [title]",
	Short: "Rename a document",
	Args:  cobra.MinimumNArgs(2),
	RunE:  renameDocument,
}

// showCmd prints a document with line numbers
var showCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Print a document with line numbers",
	Args:  cobra.ExactArgs(1),
	RunE:  showDocument,
}

// statusCmd shows store status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store location, schema version and counts",
	Args:  cobra.NoArgs,
	RunE:  showStatus,
}

func listDocuments(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.store.ListDocuments(ctx, cfg.Store.OwnerID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents yet. Create one with: claridoc docs new <title>")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tLINES\tUPDATED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, d.Title, buffer.LineCount(d.Content), humanize.Time(d.UpdatedAt))
	}
	return tw.Flush()
}

func newDocument(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.store.CreateDocument(ctx, cfg.Store.OwnerID, strings.Join(args, " "))
	if err != nil {
		return err
	}
	logger.Info("Document created", zap.String("id", doc.ID), zap.String("title", doc.Title))
	fmt.Fprintln(cmd.OutOrStdout(), doc.ID)
	return nil
}

func renameDocument(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	title := strings.Join(args[1:], " ")
	if err := a.store.RenameDocument(ctx, args[0], title); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], strings.TrimSpace(title))
	return nil
}

func showDocument(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.store.GetDocument(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderDocument(doc.Title, doc.Content))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Workspace:  %s\n", workspace)
	fmt.Fprintf(out, "Database:   %s (%s, schema v%d)\n", a.store.Path(), a.store.Driver(), a.store.SchemaVersion())
	fmt.Fprintf(out, "Owner:      %s\n", cfg.Store.OwnerID)
	fmt.Fprintf(out, "Model:      %s\n", cfg.LLM.Model)
	fmt.Fprintf(out, "Documents:  %s\n", humanize.Comma(stats["documents"]))
	fmt.Fprintf(out, "Chat turns: %s\n", humanize.Comma(stats["chat_turns"]))
	if a.mirror != nil {
		fmt.Fprintf(out, "Mirror:     %s\n", a.mirror.Dir())
	}
	return nil
}
