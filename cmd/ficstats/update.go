package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ficstats/internal/chart"
	"github.com/TobiSchelling/ficstats/internal/database"
	"github.com/TobiSchelling/ficstats/internal/history"
	"github.com/TobiSchelling/ficstats/internal/update"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch today's stats for every tracked work and redraw the charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLock(func() error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			renderer, err := chart.NewHTMLRenderer()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			runner := update.New(
				reg,
				newClient(),
				history.NewStore(fileLayout()),
				renderer,
				fileLayout(),
				update.WithLedger(db),
				update.WithFetchTimeout(cfg.FetchTimeout()),
			)
			report := runner.RunAll(ctx)
			printReport(cmd.OutOrStdout(), report)
			return nil
		})
	},
}

func printReport(out io.Writer, report *update.Report) {
	if len(report.Entries) == 0 {
		fmt.Fprintln(out, "No works tracked. Add one with: ficstats add <work-id-or-url>")
		return
	}

	colorize := shouldColorize(out)
	rows := make([][]string, len(report.Entries))
	for i, e := range report.Entries {
		detail := ""
		if e.Err != nil {
			detail = e.Err.Error()
		} else if e.Outcome == update.Updated {
			detail = fmt.Sprintf("%d samples", e.Samples)
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			e.Work.DisplayName,
			colorOutcome(e.Outcome, colorize),
			detail,
		}
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Name", "Outcome", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d updated, %d failed, %d skipped\n", report.Updated(), report.Failed(), report.Skipped())
	if report.Aborted {
		fmt.Fprintln(out, "Lost connection to the site; not updated today.")
	}
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last run and ledger totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		reg, err := openRegistry()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		colorize := shouldColorize(out)
		today := database.Today()

		fmt.Fprintf(out, "Today: %s\n", today)
		fmt.Fprintf(out, "Tracked works: %d\n", reg.Len())
		fmt.Fprintf(out, "Registry: %s\n\n", reg.Path())

		last, err := db.GetLastRun()
		if err != nil {
			return fmt.Errorf("reading last run: %w", err)
		}
		if last == nil {
			fmt.Fprintln(out, "No runs recorded yet. Run: ficstats update")
			return nil
		}

		lastOK, err := db.GetLastUpdateDate()
		if err != nil {
			return fmt.Errorf("reading last update: %w", err)
		}

		fmt.Fprintf(out, "Last run: %s\n", last.StartedAt)
		switch {
		case last.Aborted:
			reason := ""
			if last.AbortReason != nil {
				reason = *last.AbortReason
			}
			msg := "Last run aborted"
			if last.RunDate == today {
				msg = "Not updated today"
			}
			fmt.Fprintf(out, "%s: %s\n", colorOutcome(msg, colorize), reason)
			if lastOK != "" {
				fmt.Fprintf(out, "Last complete update: %s\n", lastOK)
			}
		case lastOK == today:
			fmt.Fprintln(out, "Updated today.")
		default:
			fmt.Fprintf(out, "Last complete update: %s\n", lastOK)
		}

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		fmt.Fprintln(out, "\nLedger:")
		fmt.Fprintf(out, "  Runs: %d (%d aborted)\n", stats.TotalRuns, stats.AbortedRuns)
		fmt.Fprintf(out, "  Days with runs: %d\n", stats.DaysWithRuns)
		fmt.Fprintf(out, "  Entries updated: %d\n", stats.UpdatedEntries)
		fmt.Fprintf(out, "  Entries failed: %d\n", stats.FailedEntries)
		return nil
	},
}
