package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"claridoc/internal/usage"
)

// usageCmd prints recorded token usage
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show model token usage for this workspace",
	Args:  cobra.NoArgs,
	RunE:  showUsage,
}

func showUsage(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if a.tokens == nil {
		fmt.Fprintln(out, "Usage tracking is unavailable.")
		return nil
	}
	stats := a.tokens.Stats()
	if stats.Total.Calls == 0 {
		fmt.Fprintln(out, "No model calls recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "Total: %s calls, %s tokens (%s in, %s out), last %s\n",
		humanize.Comma(stats.Total.Calls), humanize.Comma(stats.Total.Total),
		humanize.Comma(stats.Total.Input), humanize.Comma(stats.Total.Output),
		humanize.Time(a.tokens.Updated()))

	titles := make(map[string]string)
	if docs, err := a.store.ListDocuments(ctx, cfg.Store.OwnerID); err == nil {
		for _, d := range docs {
			titles[d.ID] = d.Title
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	writeUsageTable(tw, "MODEL", stats.ByModel, nil)
	writeUsageTable(tw, "OPERATION", stats.ByOperation, nil)
	writeUsageTable(tw, "DOCUMENT", stats.ByDocument, titles)
	return tw.Flush()
}

// writeUsageTable prints one breakdown, largest total first.
func writeUsageTable(w io.Writer, heading string, counts map[string]usage.TokenCounts, labels map[string]string) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]].Total != counts[keys[j]].Total {
			return counts[keys[i]].Total > counts[keys[j]].Total
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintf(w, "\n%s\tCALLS\tINPUT\tOUTPUT\tTOTAL\n", heading)
	for _, k := range keys {
		c := counts[k]
		name := k
		if title, ok := labels[k]; ok {
			name = fmt.Sprintf("%s (%s)", title, k)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name,
			humanize.Comma(c.Calls), humanize.Comma(c.Input), humanize.Comma(c.Output), humanize.Comma(c.Total))
	}
}
