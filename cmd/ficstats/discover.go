package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ficstats/internal/discover"
)

const summaryWidth = 60

var discoverLimit int

var discoverCmd = &cobra.Command{
	Use:   "discover <feed-url>",
	Short: "List works from an AO3 tag feed that could be tracked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser := discover.NewParser(cfg.Source.UserAgent, cfg.FetchTimeout())
		candidates, err := parser.Parse(cmd.Context(), args[0], discoverLimit)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No works found in feed.")
			return nil
		}

		rows := make([][]string, len(candidates))
		for i, c := range candidates {
			rows[i] = []string{strconv.Itoa(i + 1), c.WorkID, c.Title, c.Author, c.Published, truncate(c.Summary, summaryWidth)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"#", "Work ID", "Title", "Author", "Published", "Summary"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
		))
		fmt.Fprintln(cmd.OutOrStdout(), "Track one with: ficstats add <work-id>")
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVarP(&discoverLimit, "limit", "n", 20, "Maximum number of works to list")
}

// truncate shortens s to at most width display columns, marking the cut.
func truncate(s string, width int) string {
	if text.RuneWidthWithoutEscSequences(s) <= width {
		return s
	}
	return text.Trim(s, width-3) + "..."
}
