package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ficstats/internal/history"
	"github.com/TobiSchelling/ficstats/internal/registry"
	"github.com/TobiSchelling/ficstats/internal/source"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked works",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		works := reg.List()
		if len(works) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No works tracked. Add one with: ficstats add <work-id-or-url>")
			return nil
		}

		rows := make([][]string, len(works))
		for i, w := range works {
			rows[i] = []string{strconv.Itoa(i + 1), w.ID, w.DisplayName, w.OutputDir}
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"#", "Work ID", "Name", "Output directory"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
		))
		return nil
	},
}

// --- add command ---

var (
	addDir     string
	addOffline bool
)

var addCmd = &cobra.Command{
	Use:   "add <work-id-or-url> [name]",
	Short: "Start tracking a work",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := source.ParseWorkID(args[0])
		if err != nil {
			return err
		}

		name := ""
		if len(args) > 1 {
			name = args[1]
		}

		if !addOffline {
			title, err := checkWork(cmd.Context(), id)
			if err != nil {
				return err
			}
			if name == "" {
				name = title
			}
		}
		if name == "" {
			return fmt.Errorf("a display name is required when the work title is unknown")
		}
		if err := registry.ValidateName(registry.NormalizeName(name)); err != nil {
			if len(args) < 2 {
				return fmt.Errorf("work title cannot be used as a display name, pass one explicitly: %w", err)
			}
			return err
		}

		dir := addDir
		if dir == "" {
			dir = cfg.GetChartDir()
		}

		return withLock(func() error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			w, err := reg.Add(registry.TrackedWork{ID: id, DisplayName: name, OutputDir: dir})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added [%d] %s (%s)\n", reg.Len(), w.DisplayName, w.ID)
			return nil
		})
	},
}

func init() {
	addCmd.Flags().StringVarP(&addDir, "dir", "d", "", "Directory the chart is written to (default paths.chart_dir)")
	addCmd.Flags().BoolVar(&addOffline, "offline", false, "Skip checking that the work exists")
}

// checkWork confirms that id exists upstream and returns its title. When the
// site cannot be reached the work is accepted with a warning.
func checkWork(ctx context.Context, id string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	snap, err := newClient().Fetch(ctx, id)
	switch {
	case err == nil:
		return snap.Title, nil
	case source.IsNotFound(err):
		return "", &registry.ValidationError{Field: "work ID", Value: id, Reason: "no such work"}
	case source.IsConnectivity(err):
		log.Printf("Warning: could not reach %s, adding work %s unchecked: %v", cfg.Source.BaseURL, id, err)
		return "", nil
	default:
		var fe *source.FetchError
		if errors.As(err, &fe) && fe.Kind == source.KindRestricted {
			log.Printf("Warning: work %s is restricted to logged-in users; stats may not be readable", id)
			return "", nil
		}
		return "", err
	}
}

// --- edit command ---

var (
	editID   string
	editName string
	editDir  string
)

var editCmd = &cobra.Command{
	Use:   "edit <index>",
	Short: "Change a tracked work's ID, name or output directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if !flags.Changed("id") && !flags.Changed("name") && !flags.Changed("dir") {
			return fmt.Errorf("nothing to change: pass --id, --name or --dir")
		}

		return withLock(func() error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			index, err := parseIndex(args[0], reg.Len())
			if err != nil {
				return err
			}

			w, _ := reg.Get(index)
			if flags.Changed("id") {
				if w.ID, err = source.ParseWorkID(editID); err != nil {
					return err
				}
			}
			if flags.Changed("name") {
				w.DisplayName = editName
			}
			if flags.Changed("dir") {
				w.OutputDir = editDir
			}

			updated, err := reg.Edit(index, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated [%d] %s (%s) -> %s\n", index+1, updated.DisplayName, updated.ID, updated.OutputDir)
			return nil
		})
	},
}

func init() {
	editCmd.Flags().StringVar(&editID, "id", "", "New work ID or URL")
	editCmd.Flags().StringVar(&editName, "name", "", "New display name")
	editCmd.Flags().StringVar(&editDir, "dir", "", "New output directory")
}

// --- remove command ---

var removeCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Stop tracking a work (its history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLock(func() error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			index, err := parseIndex(args[0], reg.Len())
			if err != nil {
				return err
			}
			removed, err := reg.Remove(index)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", removed.DisplayName, removed.ID)
			return nil
		})
	},
}

// --- history command ---

var historyCmd = &cobra.Command{
	Use:   "history <index>",
	Short: "Print the recorded samples of a tracked work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		index, err := parseIndex(args[0], reg.Len())
		if err != nil {
			return err
		}
		w, _ := reg.Get(index)

		series, ok, err := history.NewStore(fileLayout()).Load(w.DisplayName, w.ID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "No history for %s yet. Run: ficstats update\n", w.DisplayName)
			return nil
		}

		rows := make([][]string, len(series.Samples))
		for i, s := range series.Samples {
			added := ""
			if s.ChapterAdded {
				added = "yes"
			}
			rows[i] = []string{
				strconv.Itoa(s.DaysSincePublish),
				strconv.Itoa(s.Chapters),
				humanize.Comma(int64(s.Hits)),
				humanize.Comma(int64(s.Kudos)),
				humanize.Comma(int64(s.Comments)),
				humanize.Comma(int64(s.Words)),
				added,
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", w.DisplayName, w.ID)
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Day", "Chapters", "Hits", "Kudos", "Comments", "Words", "New chapter"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
		return nil
	},
}

// parseIndex converts a 1-based index argument to a 0-based registry index.
func parseIndex(arg string, n int) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", arg)
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("index %d out of range (1-%d)", i, n)
	}
	return i - 1, nil
}
