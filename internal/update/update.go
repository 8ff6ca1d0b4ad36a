// Package update runs the daily batch: fetch every tracked work, record the
// sample, and redraw its chart.
package update

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/ficstats/internal/chart"
	"github.com/TobiSchelling/ficstats/internal/database"
	"github.com/TobiSchelling/ficstats/internal/history"
	"github.com/TobiSchelling/ficstats/internal/layout"
	"github.com/TobiSchelling/ficstats/internal/registry"
	"github.com/TobiSchelling/ficstats/internal/source"
)

// Outcome of one entry within a run.
const (
	Updated = "updated"
	Failed  = "failed"
	Skipped = "skipped"
)

// EntryResult holds the result for a single tracked work.
type EntryResult struct {
	Work    registry.TrackedWork
	Outcome string
	Err     error
	Samples int
}

// Report holds the results of a full run, one entry per registry row in
// registry order.
type Report struct {
	Date    time.Time
	Aborted bool
	Entries []EntryResult
}

// Updated returns the number of entries that were recorded.
func (r *Report) Updated() int { return r.count(Updated) }

// Failed returns the number of entries that failed.
func (r *Report) Failed() int { return r.count(Failed) }

// Skipped returns the number of entries not attempted after an abort.
func (r *Report) Skipped() int { return r.count(Skipped) }

func (r *Report) count(outcome string) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

// Lister supplies the tracked works for a run.
type Lister interface {
	List() []registry.TrackedWork
}

// Ledger persists run reports.
type Ledger interface {
	InsertRun(run *database.Run) (int64, error)
}

// Runner orchestrates an update run.
type Runner struct {
	works    Lister
	src      source.Source
	hist     *history.Store
	renderer chart.Renderer
	layout   layout.Layout
	ledger   Ledger
	now      func() time.Time
	timeout  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLedger records every run in the given ledger.
func WithLedger(l Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithClock overrides the clock used to decide "today".
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithFetchTimeout bounds each individual fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// New creates a runner.
func New(works Lister, src source.Source, hist *history.Store, renderer chart.Renderer, l layout.Layout, opts ...Option) *Runner {
	r := &Runner{
		works:    works,
		src:      src,
		hist:     hist,
		renderer: renderer,
		layout:   l,
		now:      time.Now,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll processes every tracked work sequentially. A connectivity failure
// stops the run; every later entry is reported as skipped.
func (r *Runner) RunAll(ctx context.Context) *Report {
	started := r.now()
	report := &Report{Date: started}
	works := r.works.List()

	log.Printf("Updating %d tracked works...", len(works))

	var abortErr error
	for i, w := range works {
		if abortErr != nil {
			report.Entries = append(report.Entries, EntryResult{Work: w, Outcome: Skipped})
			continue
		}

		log.Printf("[%d/%d] %s (%s)", i+1, len(works), w.DisplayName, w.ID)
		entry := r.runOne(ctx, w, started)
		report.Entries = append(report.Entries, entry)

		if entry.Err != nil {
			log.Printf("  failed: %v", entry.Err)
			if source.IsConnectivity(entry.Err) {
				abortErr = entry.Err
				report.Aborted = true
				log.Printf("Lost connection, skipping remaining %d works", len(works)-i-1)
			}
		}
	}

	if r.ledger != nil {
		if _, err := r.ledger.InsertRun(toRun(report, abortErr)); err != nil {
			log.Printf("Warning: could not record run: %v", err)
		}
	}
	return report
}

func (r *Runner) runOne(ctx context.Context, w registry.TrackedWork, today time.Time) EntryResult {
	entry := EntryResult{Work: w, Outcome: Failed}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	snap, err := r.src.Fetch(fetchCtx, w.ID)
	cancel()
	if err != nil {
		entry.Err = err
		return entry
	}

	series, err := r.hist.Record(w.DisplayName, w.ID, snap, today)
	if err != nil {
		entry.Err = err
		return entry
	}
	entry.Samples = len(series.Samples)

	title := fmt.Sprintf("%q Data", w.DisplayName)
	if err := r.renderer.Render(series, title, r.layout.ChartPath(w.OutputDir, w.DisplayName)); err != nil {
		entry.Err = err
		return entry
	}

	entry.Outcome = Updated
	return entry
}

func toRun(report *Report, abortErr error) *database.Run {
	run := &database.Run{
		RunDate:   report.Date.Format("2006-01-02"),
		StartedAt: report.Date.Format(time.RFC3339),
		Aborted:   report.Aborted,
	}
	if abortErr != nil {
		reason := abortErr.Error()
		run.AbortReason = &reason
	}
	for i, e := range report.Entries {
		re := database.RunEntry{
			Position:    i,
			WorkID:      e.Work.ID,
			DisplayName: e.Work.DisplayName,
			Outcome:     e.Outcome,
			Samples:     e.Samples,
		}
		if e.Err != nil {
			reason := e.Err.Error()
			re.Reason = &reason
		}
		run.Entries = append(run.Entries, re)
	}
	return run
}
